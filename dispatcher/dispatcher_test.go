package dispatcher

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gocrud/mvc/bootstrap"
	"github.com/gocrud/mvc/configuration"
	"github.com/gocrud/mvc/controller"
	"github.com/gocrud/mvc/di"
	"github.com/gocrud/mvc/localization"
	"github.com/gocrud/mvc/logging"
	"github.com/gocrud/mvc/validation"
	"github.com/gocrud/mvc/web"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"
)

type CalculatorAction struct {
	controller.BaseActionBean
	NumberOne float64 `validate:"required"`
	NumberTwo float64
}

func (a *CalculatorAction) Add() controller.Resolution {
	return controller.JSON(http.StatusOK, map[string]float64{"result": a.NumberOne + a.NumberTwo})
}

func (a *CalculatorAction) Divide() (controller.Resolution, error) {
	if a.NumberTwo == 0 {
		return nil, errors.New("division by zero")
	}
	return controller.JSON(http.StatusOK, map[string]float64{"result": a.NumberOne / a.NumberTwo}), nil
}

func (a *CalculatorAction) Clear() controller.Resolution { return nil }

func (a *CalculatorAction) Boom() controller.Resolution { panic("boom") }

func (a *CalculatorAction) DefaultEvent() string { return "add" }

type SignupAction struct {
	controller.BaseActionBean
	Email string `validate:"required,email"`
}

func (a *SignupAction) Submit() controller.Resolution { return controller.Redirect("/welcome") }

func (a *SignupAction) HandleValidationErrors(errs validation.ValidationErrors) controller.Resolution {
	return controller.Text(http.StatusUnprocessableEntity, "invalid: "+strings.Join(errs.Fields(), ","))
}

func newConfiguration(t *testing.T) configuration.Configuration {
	t.Helper()
	registry := controller.NewActionRegistry().
		MustBind("/calc/{numberOne}/{numberTwo}/{$event}", &CalculatorAction{}).
		MustBind("/signup", &SignupAction{})

	mem := localization.NewMemorySource().
		Put(localization.DefaultBundleName, language.Und, map[string]string{
			validation.KeyInvalidNumber: "{0} is not a number: {1}",
			"validation.required":       "{0} is required",
			"/calc.numberOne":           "First number",
		}).
		Put(localization.DefaultBundleName, language.German, map[string]string{
			validation.KeyInvalidNumber: "{0} ist keine Zahl: {1}",
			"/calc.numberOne":           "Erste Zahl",
		})

	cfg := configuration.NewRuntime(
		configuration.WithLogger(logging.Discard()),
		configuration.WithActionRegistry(registry),
		configuration.WithService(func() localization.BundleSource { return mem }),
	)
	require.NoError(t, cfg.SetBootstrapPropertyResolver(bootstrap.NewPropertyResolver(bootstrap.InitParams{
		localization.PropertyLocales:                              "en, de",
		configuration.LocalizationBundleFactoryKind.PropertyKey(): "source",
	})))
	require.NoError(t, cfg.Init())
	return cfg
}

func serve(h http.Handler, method, target, acceptLanguage string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	if acceptLanguage != "" {
		req.Header.Set("Accept-Language", acceptLanguage)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestDispatchEvents(t *testing.T) {
	metrics, err := NewMetrics(nil)
	require.NoError(t, err)
	d := New(newConfiguration(t), logging.Discard(), WithMetrics(metrics))

	rec := serve(d, http.MethodGet, "/calc/2/3/add", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"result":5}`, rec.Body.String())
	assert.Equal(t, "en", rec.Header().Get("Content-Language"))

	rec = serve(d, http.MethodGet, "/calc/9/3?divide=", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"result":3}`, rec.Body.String())

	rec = serve(d, http.MethodGet, "/calc/1/2", "")
	assert.JSONEq(t, `{"result":3}`, rec.Body.String(), "default event")

	rec = serve(d, http.MethodGet, "/calc/1/2/clear", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = serve(d, http.MethodGet, "/calc/1,5/2,25/add", "de-DE")
	assert.Equal(t, "de", rec.Header().Get("Content-Language"))
	assert.JSONEq(t, `{"result":3.75}`, rec.Body.String())

	assert.Equal(t, 3.0, testutil.ToFloat64(metrics.requests.WithLabelValues("/calc/{numberOne}/{numberTwo}/{$event}", "add", OutcomeOK)))
}

func TestDispatchFailures(t *testing.T) {
	metrics, err := NewMetrics(nil)
	require.NoError(t, err)
	d := New(newConfiguration(t), logging.Discard(), WithMetrics(metrics))

	rec := serve(d, http.MethodGet, "/nowhere", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "no action bean bound")

	rec = serve(d, http.MethodGet, "/calc/1/2/multiply", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "multiply")

	rec = serve(d, http.MethodGet, "/calc/1/0/divide", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "division by zero")

	rec = serve(d, http.MethodGet, "/calc/1/2/add?note=%zz", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "malformed request parameters")

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.requests.WithLabelValues("/calc/{numberOne}/{numberTwo}/{$event}", "add", OutcomeInvalid)))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.requests.WithLabelValues("", "", OutcomeNotFound)))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.requests.WithLabelValues("/calc/{numberOne}/{numberTwo}/{$event}", "", OutcomeNotFound)))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.requests.WithLabelValues("/calc/{numberOne}/{numberTwo}/{$event}", "divide", OutcomeError)))
}

func TestValidationErrorsAreLocalized(t *testing.T) {
	d := New(newConfiguration(t), nil)

	rec := serve(d, http.MethodGet, "/calc/abc/2/add", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"errors":{"numberOne":["First number is not a number: abc"]}}`, rec.Body.String())

	rec = serve(d, http.MethodGet, "/calc/abc/2/add", "de")
	assert.JSONEq(t, `{"errors":{"numberOne":["Erste Zahl ist keine Zahl: abc"]}}`, rec.Body.String())

	rec = serve(d, http.MethodGet, "/calc?numberTwo=1", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"errors":{"numberOne":["First number is required"]}}`, rec.Body.String())
}

func TestValidationErrorHandler(t *testing.T) {
	d := New(newConfiguration(t), nil)

	rec := serve(d, http.MethodPost, "/signup?email=nope", "")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "invalid: email", rec.Body.String())

	rec = serve(d, http.MethodPost, "/signup?email=a@example.com", "")
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/welcome", rec.Header().Get("Location"))
}

func TestMountRoutesOnWebHost(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics, err := NewMetrics(registry)
	require.NoError(t, err)
	d := New(newConfiguration(t), nil, WithMetrics(metrics), WithMetricsEndpoint("/metrics", registry))

	c := di.NewContainer()
	_, err = di.Provide(c, d)
	require.NoError(t, err)
	require.NoError(t, c.Build())

	host := web.NewBuilder().AddControllerTypes(di.TypeOf[*Dispatcher]()).Build(c)
	require.NoError(t, host.MapControllers())
	h := host.Handler()

	rec := serve(h, http.MethodGet, "/calc/2/2/add", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"result":4}`, rec.Body.String())

	rec = serve(h, http.MethodPost, "/calc/2/2", "")
	assert.JSONEq(t, `{"result":4}`, rec.Body.String())

	rec = serve(h, http.MethodGet, "/calc/1/2/boom", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code, "gin recovers handler panics")

	rec = serve(h, http.MethodGet, "/unbound", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = serve(h, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `mvc_requests_total{action="/calc/{numberOne}/{numberTwo}/{$event}",event="add",outcome="ok"} 2`)
}
