package controller

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"reflect"
	"testing"
	"time"

	"github.com/gocrud/mvc/logging"
	"github.com/gocrud/mvc/validation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"
)

type CalculatorAction struct {
	BaseActionBean
	NumberOne float64 `validate:"required"`
	NumberTwo float64 `validate:"required"`
	Result    float64 `form:"-"`
}

func (a *CalculatorAction) Add() Resolution {
	a.Result = a.NumberOne + a.NumberTwo
	return JSON(http.StatusOK, map[string]float64{"result": a.Result})
}

func (a *CalculatorAction) Divide() (Resolution, error) {
	if a.NumberTwo == 0 {
		return nil, errors.New("division by zero")
	}
	a.Result = a.NumberOne / a.NumberTwo
	return JSON(http.StatusOK, map[string]float64{"result": a.Result}), nil
}

func (a *CalculatorAction) DefaultEvent() string { return "add" }

type Address struct {
	City string `validate:"required"`
	Zip  string `form:"postcode"`
}

type Audit struct {
	CreatedBy string
}

type UserAction struct {
	BaseActionBean
	*Audit
	Name     string            `form:"name" validate:"required,min=2"`
	Age      int               `validate:"gte=0,lte=150"`
	Tags     []string          `form:"tag"`
	Scores   []int             `form:"score"`
	Attrs    map[string]string `form:"attr"`
	Address  *Address
	Born     time.Time
	Secret   string `form:"-"`
	internal string
}

func (a *UserAction) Save() Resolution { return Status(http.StatusNoContent) }

type ReportAction struct {
	BaseActionBean
	checked bool
}

func (a *ReportAction) View() Resolution   { return Text(http.StatusOK, "view") }
func (a *ReportAction) Export() Resolution { return Text(http.StatusOK, "export") }

func (a *ReportAction) Validate(errs validation.ValidationErrors) {
	a.checked = true
	errs.Add(validation.ValidationError{Field: "report", Key: "report.invalid"})
}

type EmptyAction struct {
	BaseActionBean
}

func newResolver(t *testing.T, bind func(r *ActionRegistry)) *DefaultActionResolver {
	t.Helper()
	reg := NewActionRegistry()
	bind(reg)
	r, err := NewDefaultActionResolver(reg, logging.Discard())
	require.NoError(t, err)
	return r
}

func newBinder() *DefaultActionBeanPropertyBinder {
	return NewDefaultActionBeanPropertyBinder(validation.NewDefaultTypeConverterFactory(), logging.Discard())
}

func requestContext(target string) *ActionBeanContext {
	return NewActionBeanContext(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, target, nil))
}

func TestParseURLBinding(t *testing.T) {
	b, err := ParseURLBinding("/calc/{numberOne}/{numberTwo}/{$event}")
	require.NoError(t, err)
	assert.Equal(t, "/calc", b.Path())
	assert.Equal(t, []string{"numberOne", "numberTwo"}, b.Params())
	assert.True(t, b.HasEvent())
	assert.Equal(t, []string{"/calc", "/calc/:p0", "/calc/:p0/:p1", "/calc/:p0/:p1/:p2"}, b.RoutePaths())

	values, ok := b.Match("/calc/1/2/add")
	require.True(t, ok)
	assert.Equal(t, map[string]string{"numberOne": "1", "numberTwo": "2", "$event": "add"}, values)

	values, ok = b.Match("/calc/1")
	require.True(t, ok)
	assert.Equal(t, map[string]string{"numberOne": "1"}, values)

	_, ok = b.Match("/calc/1/2/add/extra")
	assert.False(t, ok)
	_, ok = b.Match("/other/1")
	assert.False(t, ok)

	for _, bad := range []string{"calc", "/calc/{$event}/{x}", "/{a}/lit", "/calc/{x", "/a/{x}/{x}", "/a/b{c}"} {
		_, err := ParseURLBinding(bad)
		assert.ErrorIs(t, err, ErrInvalidBinding, bad)
	}
}

func TestRegistryRejectsDuplicates(t *testing.T) {
	reg := NewActionRegistry()
	require.NoError(t, reg.Bind("/calc", &CalculatorAction{}))

	assert.ErrorIs(t, reg.Bind("/calc", &UserAction{}), ErrDuplicateBinding)
	assert.ErrorIs(t, reg.Bind("/calc2", &CalculatorAction{}), ErrDuplicateBinding)
	assert.ErrorIs(t, reg.Bind("nope", &UserAction{}), ErrInvalidBinding)
	assert.Error(t, reg.Bind("/nil", nil))
	assert.Len(t, reg.Bindings(), 1)

	assert.Panics(t, func() { reg.MustBind("/calc", &UserAction{}) })
}

func TestResolverRejectsBeanWithoutHandlers(t *testing.T) {
	reg := NewActionRegistry().MustBind("/empty", &EmptyAction{})
	_, err := NewDefaultActionResolver(reg, logging.Discard())
	assert.ErrorContains(t, err, "no event handlers")
}

func TestResolveActionBean(t *testing.T) {
	r := newResolver(t, func(reg *ActionRegistry) {
		reg.MustBind("/calc/{numberOne}/{numberTwo}/{$event}", &CalculatorAction{})
		reg.MustBind("/calc/user/{name}", &UserAction{})
		reg.MustBind("/report", &ReportAction{})
	})

	calcType := reflect.TypeOf(&CalculatorAction{})
	assert.Equal(t, []reflect.Type{reflect.TypeOf(&UserAction{}), calcType, reflect.TypeOf(&ReportAction{})}, r.ActionBeanTypes())
	assert.Equal(t, "/calc/{numberOne}/{numberTwo}/{$event}", r.URLBinding(calcType))
	assert.Equal(t, "", r.URLBinding(reflect.TypeOf(&EmptyAction{})))

	binding, ok := r.URLBindingFromPath("/calc/user/bob")
	assert.True(t, ok)
	assert.Equal(t, "/calc/user/{name}", binding, "the binding with more literal segments wins")
	_, ok = r.URLBindingFromPath("/nowhere")
	assert.False(t, ok)

	ctx := requestContext("/calc/3/4/divide?numberOne=9")
	bean, err := r.ActionBean(ctx)
	require.NoError(t, err)
	calc, ok := bean.(*CalculatorAction)
	require.True(t, ok)
	assert.Same(t, ctx, calc.Context())
	assert.Equal(t, "3", ctx.Param("numberOne"), "path parameters replace query values")
	assert.Equal(t, "/calc", ctx.ActionPath)
	assert.Equal(t, "divide", r.EventName(calcType, ctx))

	other, err := r.ActionBean(requestContext("/calc/1/2"))
	require.NoError(t, err)
	assert.NotSame(t, bean, other)

	_, err = r.ActionBean(requestContext("/nowhere"))
	assert.ErrorIs(t, err, ErrNoBinding)
}

func TestEventNameResolution(t *testing.T) {
	r := newResolver(t, func(reg *ActionRegistry) {
		reg.MustBind("/calc/{$event}", &CalculatorAction{})
	})
	calcType := reflect.TypeOf(&CalculatorAction{})

	ctx := requestContext("/calc/add?_eventName=divide&add=")
	_, err := r.ActionBean(ctx)
	require.NoError(t, err)
	assert.Equal(t, "divide", r.EventName(calcType, ctx), "_eventName wins")

	ctx = requestContext("/calc/add?divide=Divide")
	_, err = r.ActionBean(ctx)
	require.NoError(t, err)
	assert.Equal(t, "divide", r.EventName(calcType, ctx), "handler-named parameter beats the url")

	ctx = requestContext("/calc")
	_, err = r.ActionBean(ctx)
	require.NoError(t, err)
	assert.Equal(t, "", r.EventName(calcType, ctx))
}

func TestHandlers(t *testing.T) {
	r := newResolver(t, func(reg *ActionRegistry) {
		reg.MustBind("/calc", &CalculatorAction{})
		reg.MustBind("/user", &UserAction{})
		reg.MustBind("/report", &ReportAction{})
	})

	h, err := r.DefaultHandler(reflect.TypeOf(&CalculatorAction{}))
	require.NoError(t, err)
	assert.Equal(t, "add", h.Event)
	assert.Equal(t, "Add", h.Method)

	h, err = r.Handler(reflect.TypeOf(&UserAction{}), "")
	require.NoError(t, err)
	assert.Equal(t, "save", h.Event, "a single handler is the default")

	_, err = r.DefaultHandler(reflect.TypeOf(&ReportAction{}))
	assert.ErrorIs(t, err, ErrNoDefaultHandler)

	_, err = r.Handler(reflect.TypeOf(&CalculatorAction{}), "multiply")
	assert.ErrorIs(t, err, ErrNoHandler)

	_, err = r.Handler(reflect.TypeOf(&EmptyAction{}), "x")
	assert.ErrorIs(t, err, ErrNoBinding)

	h, err = r.Handler(reflect.TypeOf(&CalculatorAction{}), "divide")
	require.NoError(t, err)
	res, err := h.Invoke(&CalculatorAction{NumberOne: 1})
	assert.Nil(t, res)
	assert.EqualError(t, err, "division by zero")

	res, err = h.Invoke(&CalculatorAction{NumberOne: 9, NumberTwo: 3})
	require.NoError(t, err)
	rec := httptest.NewRecorder()
	require.NoError(t, res.Execute(rec, httptest.NewRequest(http.MethodGet, "/", nil)))
	assert.JSONEq(t, `{"result":3}`, rec.Body.String())
}

func TestEventNameOf(t *testing.T) {
	assert.Equal(t, "add", EventNameOf("Add"))
	assert.Equal(t, "hTMLExport", EventNameOf("HTMLExport"))
}

func TestBindProperties(t *testing.T) {
	ctx := requestContext("/user")
	ctx.Params = url.Values{
		"name":             {"Ann"},
		"AGE":              {"42"},
		"tag":              {"a", "", "b"},
		"score":            {"1", "2"},
		"attr.color":       {"red"},
		"address.city":     {"Paris"},
		"address.postcode": {"75001"},
		"born":             {"2001-02-03"},
		"createdBy":        {"admin"},
		"secret":           {"leak"},
		"internal":         {"x"},
		"_sourcePage":      {"/form"},
		"unknown.thing":    {"ignored"},
		"save":             {""},
	}
	bean := &UserAction{}

	errs := newBinder().Bind(bean, ctx, true)
	require.False(t, errs.HasErrors(), "%v", errs)

	assert.Equal(t, "Ann", bean.Name)
	assert.Equal(t, 42, bean.Age)
	assert.Equal(t, []string{"a", "b"}, bean.Tags)
	assert.Equal(t, []int{1, 2}, bean.Scores)
	assert.Equal(t, map[string]string{"color": "red"}, bean.Attrs)
	require.NotNil(t, bean.Address)
	assert.Equal(t, "Paris", bean.Address.City)
	assert.Equal(t, "75001", bean.Address.Zip)
	assert.Equal(t, time.Date(2001, 2, 3, 0, 0, 0, 0, time.UTC), bean.Born)
	require.NotNil(t, bean.Audit)
	assert.Equal(t, "admin", bean.CreatedBy)
	assert.Empty(t, bean.Secret)
	assert.Empty(t, bean.internal)
}

func TestBindConversionErrors(t *testing.T) {
	ctx := requestContext("/calc")
	ctx.ActionPath = "/calc"
	ctx.Locale = language.English
	ctx.Params = url.Values{"numberOne": {"abc"}, "numberTwo": {"2"}}

	bean := &CalculatorAction{}
	errs := newBinder().Bind(bean, ctx, true)

	require.Equal(t, []string{"numberOne"}, errs.Fields(), "no required error on top of the conversion error")
	e := errs["numberOne"][0]
	assert.Equal(t, validation.KeyInvalidNumber, e.Key)
	assert.Equal(t, "abc", e.Value)
	assert.Equal(t, "/calc", e.Action)
	assert.Equal(t, 2.0, bean.NumberTwo)
	assert.Equal(t, errs, ctx.ValidationErrors)
}

func TestBindLocaleAwareNumbers(t *testing.T) {
	ctx := requestContext("/calc")
	ctx.Locale = language.German
	ctx.Params = url.Values{"numberOne": {"1.234,5"}, "numberTwo": {"2"}}

	bean := &CalculatorAction{}
	require.False(t, newBinder().Bind(bean, ctx, true).HasErrors())
	assert.Equal(t, 1234.5, bean.NumberOne)
}

func TestValidation(t *testing.T) {
	ctx := requestContext("/user")
	ctx.Params = url.Values{"name": {"A"}, "age": {"200"}}

	errs := newBinder().Bind(&UserAction{}, ctx, true)
	assert.Equal(t, []string{"age", "name"}, errs.Fields())
	assert.Equal(t, "validation.min", errs["name"][0].Key)
	assert.Equal(t, []any{"2"}, errs["name"][0].Params)
	assert.Equal(t, "A", errs["name"][0].Value)
	assert.Equal(t, "validation.lte", errs["age"][0].Key)

	errs = newBinder().Bind(&UserAction{}, ctx, false)
	assert.False(t, errs.HasErrors(), "validation skipped")
}

func TestCustomValidation(t *testing.T) {
	bean := &ReportAction{}
	errs := newBinder().Bind(bean, requestContext("/report"), true)
	assert.True(t, bean.checked)
	assert.Equal(t, "report.invalid", errs["report"][0].Key)

	bean = &ReportAction{}
	newBinder().Bind(bean, requestContext("/report"), false)
	assert.False(t, bean.checked)
}

func TestBindPropertyErrors(t *testing.T) {
	b := newBinder()
	bean := &UserAction{}

	assert.ErrorIs(t, b.BindProperty(bean, "nope", []string{"1"}, language.English), ErrNoProperty)
	assert.ErrorIs(t, b.BindProperty(bean, "name.first", []string{"1"}, language.English), ErrNoProperty)
	assert.ErrorIs(t, b.BindProperty(bean, "attr.a.b", []string{"1"}, language.English), ErrNoProperty)

	err := b.BindProperty(bean, "score", []string{"1", "x"}, language.English)
	var be *BindError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, "x", be.Value)
	var ce *validation.ConversionError
	assert.ErrorAs(t, err, &ce)

	require.NoError(t, b.BindProperty(bean, "age", []string{" "}, language.English))
	assert.Equal(t, 0, bean.Age, "blank values are not bound")
}

func TestContextKeepsParseError(t *testing.T) {
	ctx := requestContext("/calc?numberOne=1&bad=%zz")
	assert.Error(t, ctx.ParseError)
	assert.Equal(t, "1", ctx.Param("numberOne"))

	assert.NoError(t, requestContext("/calc?numberOne=1").ParseError)
}

func TestUnknownNestedPropertyLeavesPointerNil(t *testing.T) {
	ctx := requestContext("/user")
	ctx.Params = url.Values{"name": {"Ann"}, "address.bogus": {"x"}, "address.postcode": {" "}}

	bean := &UserAction{}
	errs := newBinder().Bind(bean, ctx, true)
	assert.False(t, errs.HasErrors(), "%v", errs)
	assert.Nil(t, bean.Address)

	b := newBinder()
	require.ErrorIs(t, b.BindProperty(bean, "address.bogus", []string{"x"}, language.English), ErrNoProperty)
	assert.Nil(t, bean.Address)

	require.NoError(t, b.BindProperty(bean, "address.city", []string{"Lyon"}, language.English))
	require.NotNil(t, bean.Address)
	assert.Equal(t, "Lyon", bean.Address.City)
}

func TestResolutions(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	rec := httptest.NewRecorder()
	require.NoError(t, Text(http.StatusAccepted, "hi").Execute(rec, req))
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, "hi", rec.Body.String())
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/plain")

	rec = httptest.NewRecorder()
	require.NoError(t, JSON(http.StatusCreated, map[string]int{"a": 1}).Execute(rec, req))
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "application/json")
	assert.JSONEq(t, `{"a":1}`, rec.Body.String())

	rec = httptest.NewRecorder()
	require.NoError(t, Redirect("/done").Execute(rec, req))
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/done", rec.Header().Get("Location"))

	rec = httptest.NewRecorder()
	require.NoError(t, Status(http.StatusTeapot).Execute(rec, req))
	assert.Equal(t, http.StatusTeapot, rec.Code)

	rec = httptest.NewRecorder()
	fn := ResolutionFunc(func(w http.ResponseWriter, _ *http.Request) error {
		w.WriteHeader(http.StatusGone)
		return nil
	})
	require.NoError(t, fn.Execute(rec, req))
	assert.Equal(t, http.StatusGone, rec.Code)
}
