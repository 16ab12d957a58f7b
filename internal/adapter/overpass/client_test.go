package overpass

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/couchcryptid/region-sentinel/internal/domain"
	"github.com/couchcryptid/region-sentinel/internal/geo"
	"github.com/couchcryptid/region-sentinel/internal/observability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

const (
	testBBox          = "18.7159,98.9088,18.8607,99.0618"
	contentTypeJSON   = "application/json"
	headerContentType = "Content-Type"
)

func testClient(baseURL string) *Client {
	return NewClient(Config{URL: baseURL, Timeout: 5 * time.Second},
		slog.New(slog.NewTextHandler(io.Discard, nil)),
		observability.NewMetricsForTesting())
}

const sampleResponse = `{
  "version": 0.6,
  "generator": "Overpass API",
  "elements": [
    {"type": "node", "id": 101, "lat": 18.7904, "lon": 98.9847, "tags": {"amenity": "police", "name": "Tourist Police"}},
    {"type": "node", "id": 102, "lat": 18.7871, "lon": 98.9931, "tags": {"tourism": "hostel"}},
    {"type": "way", "id": 201, "center": {"lat": 18.7955, "lon": 98.9702}, "tags": {"government": "ministry"}},
    {"type": "relation", "id": 301, "tags": {"amenity": "hospital"}}
  ]
}`

func TestClient_FetchFeatures_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, r.ParseForm())
		q := r.PostForm.Get("data")
		assert.True(t, strings.HasPrefix(q, "[out:json][timeout:5];("), q)
		assert.Contains(t, q, `node["highway"="traffic_signals"](`+testBBox+`);`)
		assert.True(t, strings.HasSuffix(q, "out body;"), q)

		w.Header().Set(headerContentType, contentTypeJSON)
		_, _ = w.Write([]byte(sampleResponse))
	}))
	defer srv.Close()

	points, err := testClient(srv.URL).FetchFeatures(context.Background(), testBBox)
	require.NoError(t, err)
	require.Len(t, points, 4)

	assert.Equal(t, domain.RawPoint{
		ID:       101,
		Type:     "node",
		Location: &geo.Coordinate{Lat: 18.7904, Lng: 98.9847},
		Tags:     domain.Tags{"amenity": "police", "name": "Tourist Police"},
	}, points[0])
	assert.Equal(t, "way/201", points[2].Key())
	require.NotNil(t, points[2].Location, "ways fall back to their center")
	assert.Equal(t, 18.7955, points[2].Location.Lat)
	assert.Nil(t, points[3].Location, "elements without geometry keep a nil location")
}

func TestClient_FetchFeatures_Empty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set(headerContentType, contentTypeJSON)
		_, _ = w.Write([]byte(`{"elements": []}`))
	}))
	defer srv.Close()

	points, err := testClient(srv.URL).FetchFeatures(context.Background(), testBBox)
	require.NoError(t, err)
	assert.Empty(t, points)
}

func TestClient_FetchFeatures_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte("rate_limited"))
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).FetchFeatures(context.Background(), testBBox)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 429")
	assert.Contains(t, err.Error(), "rate_limited")
}

func TestClient_FetchFeatures_MalformedJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set(headerContentType, contentTypeJSON)
		_, _ = w.Write([]byte(`{"elements": [`))
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).FetchFeatures(context.Background(), testBBox)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode response")
}

func TestClient_FetchFeatures_RuntimeErrorRemark(t *testing.T) {
	tests := map[string]string{
		"timeout": `{"elements":[],"remark":"runtime error: Query timed out in \"query\" at line 1 after 61 seconds."}`,
		"memory":  `{"elements":[{"type":"node","id":1,"lat":1,"lon":2}],"remark":"runtime error: Query run out of memory using about 2048 MB of RAM."}`,
		"remark":  `{"elements":[],"remark":"runtime remark: Timeout while waiting for a free slot."}`,
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set(headerContentType, contentTypeJSON)
				_, _ = w.Write([]byte(body))
			}))
			defer srv.Close()

			points, err := testClient(srv.URL).FetchFeatures(context.Background(), testBBox)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "overpass query aborted")
			assert.Nil(t, points)
		})
	}
}

func TestClient_FetchFeatures_InformationalRemark(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set(headerContentType, contentTypeJSON)
		_, _ = w.Write([]byte(`{"elements":[{"type":"node","id":1,"lat":1,"lon":2}],"remark":"note: bbox is large"}`))
	}))
	defer srv.Close()

	points, err := testClient(srv.URL).FetchFeatures(context.Background(), testBBox)
	require.NoError(t, err)
	assert.Len(t, points, 1)
}

func TestClient_FetchFeatures_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := testClient(url).FetchFeatures(context.Background(), testBBox)
	require.Error(t, err)
}

func TestClient_FetchFeatures_RateLimitHonoursContext(t *testing.T) {
	c := testClient("http://127.0.0.1:0")
	c.limiter = rate.NewLimiter(rate.Every(time.Hour), 1)
	require.True(t, c.limiter.Allow(), "drain the single token")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.FetchFeatures(ctx, testBBox)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limit")
}

func TestBuildQuery(t *testing.T) {
	q := BuildQuery("1,2,3,4", 0)
	assert.Equal(t, `[out:json];(`+
		`node["amenity"~"^(police|hospital|fire_station)$"](1,2,3,4);`+
		`node["tourism"~"^(hotel|hostel)$"](1,2,3,4);`+
		`node["government"](1,2,3,4);`+
		`node["highway"="traffic_signals"](1,2,3,4);`+
		`);out body;`, q)

	assert.True(t, strings.HasPrefix(BuildQuery("1,2,3,4", 90*time.Second), "[out:json][timeout:90];"))
}

func TestNewClient_Defaults(t *testing.T) {
	c := NewClient(Config{}, slog.New(slog.NewTextHandler(io.Discard, nil)), observability.NewMetricsForTesting())
	assert.Equal(t, DefaultURL, c.baseURL)
	assert.Equal(t, rate.Inf, c.limiter.Limit())

	c = NewClient(Config{RatePerSecond: 2}, slog.New(slog.NewTextHandler(io.Discard, nil)), observability.NewMetricsForTesting())
	assert.Equal(t, rate.Limit(2), c.limiter.Limit())
	assert.Equal(t, 1, c.limiter.Burst())
}
