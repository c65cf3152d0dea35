package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"thaliya-gateway/config"
	"thaliya-gateway/constants"
	"thaliya-gateway/services/token"
	"thaliya-gateway/types"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testApp(t *testing.T) (*fiber.App, *token.Issuer) {
	t.Helper()
	issuer := token.NewIssuer(&config.Config{
		SecretKey:   "test-secret-key-for-middleware",
		TokenIssuer: "thaliya-gateway",
		TokenTTL:    time.Hour,
	})

	app := fiber.New()
	services := app.Group("/services", ServiceAuth(issuer))
	for _, name := range constants.AllServices {
		tenant := services.Group("/"+name, RequireService(name))
		tenant.Get("/health", func(c *fiber.Ctx) error {
			return c.JSON(fiber.Map{"status": "ok"})
		})
	}
	return app, issuer
}

func doRequest(t *testing.T, app *fiber.App, path, bearer string) *http.Response {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	return resp
}

func TestMatchingTenantAllowed(t *testing.T) {
	app, issuer := testApp(t)

	signed, err := issuer.Issue("ecare_client", constants.ServiceECare)
	require.NoError(t, err)

	resp := doRequest(t, app, "/services/ecare/health", signed)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestCrossTenantRejected(t *testing.T) {
	app, issuer := testApp(t)

	signed, err := issuer.Issue("ecare_client", constants.ServiceECare)
	require.NoError(t, err)

	// An ecare token never opens another tenant's routes.
	for _, other := range []string{
		constants.ServiceGeorgetown,
		constants.ServiceChronicCareBridge,
		constants.ServiceAnarcare,
	} {
		resp := doRequest(t, app, "/services/"+other+"/health", signed)
		assert.Equal(t, http.StatusForbidden, resp.StatusCode, other)

		var body types.ErrorResponse
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.Equal(t, "SERVICE_MISMATCH", body.ErrorCode)
	}
}

func TestMissingTokenRejected(t *testing.T) {
	app, _ := testApp(t)

	resp := doRequest(t, app, "/services/ecare/health", "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestMalformedHeaderRejected(t *testing.T) {
	app, _ := testApp(t)

	req := httptest.NewRequest(http.MethodGet, "/services/ecare/health", nil)
	req.Header.Set("Authorization", "Basic not-a-bearer")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestExpiredTokenDistinguished(t *testing.T) {
	app, _ := testApp(t)

	expired := token.NewIssuer(&config.Config{
		SecretKey:   "test-secret-key-for-middleware",
		TokenIssuer: "thaliya-gateway",
		TokenTTL:    -time.Minute,
	})
	signed, err := expired.Issue("ecare_client", constants.ServiceECare)
	require.NoError(t, err)

	resp := doRequest(t, app, "/services/ecare/health", signed)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	var body types.ErrorResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "TOKEN_EXPIRED", body.ErrorCode)
}

func TestTamperedTokenRejected(t *testing.T) {
	app, issuer := testApp(t)

	signed, err := issuer.Issue("ecare_client", constants.ServiceECare)
	require.NoError(t, err)

	resp := doRequest(t, app, "/services/ecare/health", signed+"x")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	var body types.ErrorResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "TOKEN_INVALID", body.ErrorCode)
}
