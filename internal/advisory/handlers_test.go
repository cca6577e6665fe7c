package advisory

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mnbara/advisory/internal/abuse"
	"github.com/mnbara/advisory/internal/flags"
)

func newTestRouter(f *flags.Flags) (*gin.Engine, *Service) {
	gin.SetMode(gin.TestMode)
	svc, _ := newTestService(f)
	h := NewHandler(svc)
	r := gin.New()
	h.RegisterRoutes(r.Group("/v1"))
	return r, svc
}

func partyJSON(userID string) map[string]any {
	return map[string]any{
		"userId":                 userID,
		"emailVerified":          true,
		"phoneVerified":          true,
		"twoFAEnabled":           true,
		"totalTransactions":      80,
		"successfulTransactions": 78,
		"accountCreatedAt":       time.Now().AddDate(-2, 0, 0).Format(time.RFC3339),
		"averageRating":          4.8,
		"totalRatings":           60,
		"disputesRaised":         1,
		"responseRate":           0.95,
		"kycLevel":               "full",
		"passportVerified":       true,
		"totalDeliveries":        40,
		"successfulDeliveries":   39,
		"onTimeDeliveries":       36,
	}
}

func assessBody() map[string]any {
	return map[string]any{
		"requestId":    "req-http-1",
		"travelerId":   "trav-1",
		"origin":       "US",
		"destination":  "EG",
		"itemValue":    150,
		"currency":     "USD",
		"itemCategory": "books",
		"deliveryDays": 10,
		"buyer":        partyJSON("buyer-1"),
		"traveler":     partyJSON("trav-1"),
	}
}

func postJSON(t *testing.T, r *gin.Engine, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	return w
}

func TestAssessEndpoint(t *testing.T) {
	r, _ := newTestRouter(flags.AllEnabled())

	w := postJSON(t, r, "/v1/advisory/assess", assessBody())
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var body struct {
		Assessment struct {
			RequestID      string `json:"requestId"`
			BuyerTrust     *struct {
				Score int    `json:"score"`
				Level string `json:"level"`
			} `json:"buyerTrust"`
			Risk *struct {
				RiskScore   int    `json:"riskScore"`
				OverallRisk string `json:"overallRisk"`
			} `json:"risk"`
			Corridor *struct {
				CorridorID  string `json:"corridorId"`
				IsSupported bool   `json:"isSupported"`
			} `json:"corridor"`
			Recommendation *struct {
				Action     string  `json:"action"`
				Confidence float64 `json:"confidence"`
				Disclaimer string  `json:"disclaimer"`
			} `json:"recommendation"`
			Lanes *struct {
				Recommended []struct {
					Action string `json:"action"`
				} `json:"recommended"`
			} `json:"lanes"`
		} `json:"assessment"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))

	a := body.Assessment
	assert.Equal(t, "req-http-1", a.RequestID)
	require.NotNil(t, a.BuyerTrust)
	assert.Greater(t, a.BuyerTrust.Score, 0)
	require.NotNil(t, a.Risk)
	assert.NotEmpty(t, a.Risk.OverallRisk)
	require.NotNil(t, a.Corridor)
	assert.Equal(t, "US_EG", a.Corridor.CorridorID)
	assert.True(t, a.Corridor.IsSupported)
	require.NotNil(t, a.Recommendation)
	assert.NotEmpty(t, a.Recommendation.Action)
	assert.Contains(t, a.Recommendation.Disclaimer, "advisory")
	require.NotNil(t, a.Lanes)
	assert.Len(t, a.Lanes.Recommended, 1)
}

func TestAssessEndpoint_GeneratesRequestID(t *testing.T) {
	r, _ := newTestRouter(flags.AllEnabled())

	body := assessBody()
	delete(body, "requestId")
	w := postJSON(t, r, "/v1/advisory/assess", body)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Assessment struct {
			RequestID string `json:"requestId"`
		} `json:"assessment"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Contains(t, resp.Assessment.RequestID, "req_")
}

func TestAssessEndpoint_Validation(t *testing.T) {
	r, _ := newTestRouter(flags.AllEnabled())

	cases := []struct {
		name   string
		mutate func(map[string]any)
	}{
		{"missing buyer id", func(b map[string]any) { b["buyer"].(map[string]any)["userId"] = "" }},
		{"bad origin", func(b map[string]any) { b["origin"] = "USA" }},
		{"bad currency", func(b map[string]any) { b["currency"] = "DOLLARS" }},
		{"negative value", func(b map[string]any) { b["itemValue"] = -5 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			body := assessBody()
			tc.mutate(body)
			w := postJSON(t, r, "/v1/advisory/assess", body)
			assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
		})
	}
}

func TestAssessEndpoint_LowercaseCountryNormalized(t *testing.T) {
	r, _ := newTestRouter(flags.AllEnabled())

	body := assessBody()
	body["origin"] = "us"
	body["destination"] = "eg"
	w := postJSON(t, r, "/v1/advisory/assess", body)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func TestAssessEndpoint_AdmissionRejected(t *testing.T) {
	gin.SetMode(gin.TestMode)
	f := flags.AllEnabled()
	thresholds := abuse.DefaultThresholds
	thresholds.OfferFlooding = abuse.WindowThresholds{MaxPerMinute: 1, MaxPerHour: 100, CooldownMinutes: 10}
	svc, _ := newTestServiceWithGuard(f, abuse.NewGuardWithThresholds(f, thresholds))
	r := gin.New()
	NewHandler(svc).RegisterRoutes(r.Group("/v1"))

	w := postJSON(t, r, "/v1/advisory/assess", assessBody())
	require.Equal(t, http.StatusOK, w.Code)

	w = postJSON(t, r, "/v1/advisory/assess", assessBody())
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Contains(t, w.Body.String(), "admission_rejected")
}

func TestTrustScoreEndpoint(t *testing.T) {
	r, _ := newTestRouter(flags.AllEnabled())

	body := partyJSON("buyer-1")
	body["role"] = "BUYER"
	w := postJSON(t, r, "/v1/advisory/trust-score", body)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		TrustScore struct {
			UserID string `json:"userId"`
			Score  int    `json:"score"`
			Level  string `json:"level"`
			Factors []struct {
				Name string `json:"name"`
			} `json:"factors"`
		} `json:"trustScore"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "buyer-1", resp.TrustScore.UserID)
	assert.Greater(t, resp.TrustScore.Score, 0)
	assert.NotEmpty(t, resp.TrustScore.Level)
	assert.NotEmpty(t, resp.TrustScore.Factors)
}

func TestTrustScoreEndpoint_InvalidRole(t *testing.T) {
	r, _ := newTestRouter(flags.AllEnabled())

	body := partyJSON("buyer-1")
	body["role"] = "SELLER"
	w := postJSON(t, r, "/v1/advisory/trust-score", body)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTrustScoreEndpoint_Disabled(t *testing.T) {
	r, _ := newTestRouter(flags.New(map[string]bool{flags.AICoreEnabled: true}))

	body := partyJSON("buyer-1")
	body["role"] = "BUYER"
	w := postJSON(t, r, "/v1/advisory/trust-score", body)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "feature_disabled")
}

func TestIntentEndpoint(t *testing.T) {
	r, _ := newTestRouter(flags.AllEnabled())

	w := postJSON(t, r, "/v1/advisory/intent", map[string]any{
		"actorId":     "actor-1",
		"pageContext": "/request/create",
		"action":      "submit_request",
		"userRole":    "buyer",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Intent struct {
			Intent          string  `json:"intent"`
			Confidence      float64 `json:"confidence"`
			ConfidenceLevel string  `json:"confidenceLevel"`
		} `json:"intent"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "REQUEST", resp.Intent.Intent)
	assert.Equal(t, "HIGH", resp.Intent.ConfidenceLevel)
}

func TestIntentEndpoint_MissingActor(t *testing.T) {
	r, _ := newTestRouter(flags.AllEnabled())

	w := postJSON(t, r, "/v1/advisory/intent", map[string]any{"pageContext": "/matches"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCorridorsEndpoint(t *testing.T) {
	r, _ := newTestRouter(flags.AllEnabled())

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/v1/advisory/corridors", nil)
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Corridors []struct {
			ID string `json:"id"`
		} `json:"corridors"`
		Count int `json:"count"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, len(resp.Corridors), resp.Count)
	assert.GreaterOrEqual(t, resp.Count, 7)
}

func TestCorridorVolumeEndpoint(t *testing.T) {
	r, _ := newTestRouter(flags.AllEnabled())

	// Record some volume through an assessment first.
	w := postJSON(t, r, "/v1/advisory/assess", assessBody())
	require.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/v1/advisory/corridors/US_EG/volume", nil)
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		CorridorID string `json:"corridorId"`
		Volume     struct {
			VolumeUSD        float64 `json:"volumeUSD"`
			TransactionCount int     `json:"transactionCount"`
		} `json:"volume"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "US_EG", resp.CorridorID)
	assert.Equal(t, 150.0, resp.Volume.VolumeUSD)
	assert.Equal(t, 1, resp.Volume.TransactionCount)
}

func TestCorridorVolumeEndpoint_InvalidID(t *testing.T) {
	r, _ := newTestRouter(flags.AllEnabled())

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/v1/advisory/corridors/banana/volume", nil)
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "invalid_corridor")
}

func TestAuditEndpoints(t *testing.T) {
	r, _ := newTestRouter(flags.AllEnabled())

	w := postJSON(t, r, "/v1/advisory/assess", assessBody())
	require.Equal(t, http.StatusOK, w.Code)

	// Logs carry the assess entry.
	w = httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/v1/audit/logs?operation=assess", nil)
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var logs struct {
		Entries []struct {
			Operation     string `json:"operation"`
			CorrelationID string `json:"correlationId"`
		} `json:"entries"`
		Count int `json:"count"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &logs))
	require.Equal(t, 1, logs.Count)
	assert.Equal(t, "assess", logs.Entries[0].Operation)
	assert.Equal(t, "req-http-1", logs.Entries[0].CorrelationID)

	// Snapshot by request ID.
	w = httptest.NewRecorder()
	req = httptest.NewRequest("GET", "/v1/audit/snapshots/req-http-1", nil)
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "req-http-1")

	// Snapshot listing.
	w = httptest.NewRecorder()
	req = httptest.NewRequest("GET", "/v1/audit/snapshots", nil)
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var snaps struct {
		Count int `json:"count"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &snaps))
	assert.Equal(t, 1, snaps.Count)
}

func TestAuditSnapshotNotFound(t *testing.T) {
	r, _ := newTestRouter(flags.AllEnabled())

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/v1/audit/snapshots/req-missing", nil)
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "snapshot_not_found")
}
