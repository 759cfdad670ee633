// Package dispatcher 把 HTTP 请求交给 Configuration 提供的核心服务处理。
package dispatcher

import (
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gocrud/mvc/configuration"
	"github.com/gocrud/mvc/controller"
	"github.com/gocrud/mvc/localization"
	"github.com/gocrud/mvc/logging"
	"github.com/gocrud/mvc/validation"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/text/language"
)

// Dispatcher 请求生命周期：选择区域、解析 ActionBean 与事件、绑定校验、调用处理方法、执行 Resolution
type Dispatcher struct {
	config      configuration.Configuration
	logger      logging.Logger
	metrics     *Metrics
	gatherer    prometheus.Gatherer
	metricsPath string
}

// Option 配置 Dispatcher
type Option func(*Dispatcher)

// WithMetrics 记录请求指标
func WithMetrics(m *Metrics) Option {
	return func(d *Dispatcher) { d.metrics = m }
}

// WithMetricsEndpoint 挂载路由时在 path 暴露 gatherer 的指标
func WithMetricsEndpoint(path string, gatherer prometheus.Gatherer) Option {
	return func(d *Dispatcher) {
		d.metricsPath = path
		d.gatherer = gatherer
	}
}

// New 创建分发器，cfg 必须已经 Init
func New(cfg configuration.Configuration, logger logging.Logger, opts ...Option) *Dispatcher {
	if logger == nil {
		logger = logging.Discard()
	}
	d := &Dispatcher{config: cfg, logger: logger.WithCategory("dispatcher")}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Configuration 分发器持有的配置
func (d *Dispatcher) Configuration() configuration.Configuration {
	return d.config
}

func (d *Dispatcher) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	action, event, outcome := "", "", OutcomeOK
	defer func() {
		// panic 交给上层恢复，这里只记录结果
		if p := recover(); p != nil {
			d.metrics.observe(action, event, OutcomeError, time.Since(start))
			panic(p)
		}
		d.metrics.observe(action, event, outcome, time.Since(start))
	}()

	picker := d.config.LocalePicker()
	locale := picker.PickLocale(r)
	w.Header().Set("Content-Language", locale.String())

	ctx := controller.NewActionBeanContext(w, r)
	ctx.Locale = locale

	resolver := d.config.ActionResolver()
	bean, err := resolver.ActionBean(ctx)
	if err != nil {
		outcome = OutcomeNotFound
		d.fail(w, r, http.StatusNotFound, err)
		return
	}
	beanType := reflect.TypeOf(bean)
	action = resolver.URLBinding(beanType)

	handler, err := resolver.Handler(beanType, resolver.EventName(beanType, ctx))
	if err != nil {
		outcome = OutcomeNotFound
		d.fail(w, r, http.StatusNotFound, err)
		return
	}
	event = handler.Event
	ctx.EventName = handler.Event

	if ctx.ParseError != nil {
		outcome = OutcomeInvalid
		d.fail(w, r, http.StatusBadRequest, fmt.Errorf("malformed request parameters: %w", ctx.ParseError))
		return
	}

	errs := d.config.ActionBeanPropertyBinder().Bind(bean, ctx, true)
	if errs.HasErrors() {
		outcome = OutcomeInvalid
		d.execute(w, r, d.validationResolution(bean, errs, locale))
		return
	}

	res, err := handler.Invoke(bean)
	if err != nil {
		outcome = OutcomeError
		d.logger.Error("event handler failed",
			logging.Field{Key: "action", Value: action},
			logging.Field{Key: "event", Value: event},
			logging.Err(err))
		d.fail(w, r, http.StatusInternalServerError, errors.New(http.StatusText(http.StatusInternalServerError)))
		return
	}
	if res == nil {
		res = controller.Status(http.StatusNoContent)
	}
	d.execute(w, r, res)
}

func (d *Dispatcher) validationResolution(bean controller.ActionBean, errs validation.ValidationErrors, locale language.Tag) controller.Resolution {
	if h, ok := bean.(controller.ValidationErrorHandler); ok {
		if res := h.HandleValidationErrors(errs); res != nil {
			return res
		}
	}
	messages, fields := d.bundles(locale)
	return controller.JSON(http.StatusBadRequest, gin.H{"errors": errs.Messages(messages, fields)})
}

// bundles 取得错误消息与字段名包，缺失时返回 nil，消息回退为键本身
func (d *Dispatcher) bundles(locale language.Tag) (messages, fields validation.MessageSource) {
	factory := d.config.LocalizationBundleFactory()
	if b, err := factory.ErrorMessageBundle(locale); err == nil {
		messages = b
	} else if !errors.Is(err, localization.ErrBundleNotFound) {
		d.logger.Warn("error message bundle unavailable", logging.Err(err))
	}
	if b, err := factory.FormFieldBundle(locale); err == nil {
		fields = b
	} else if !errors.Is(err, localization.ErrBundleNotFound) {
		d.logger.Warn("field name bundle unavailable", logging.Err(err))
	}
	return messages, fields
}

func (d *Dispatcher) fail(w http.ResponseWriter, r *http.Request, code int, err error) {
	d.logger.Debug("request rejected",
		logging.Field{Key: "path", Value: r.URL.Path},
		logging.Field{Key: "status", Value: code},
		logging.Err(err))
	d.execute(w, r, controller.JSON(code, gin.H{"error": err.Error()}))
}

func (d *Dispatcher) execute(w http.ResponseWriter, r *http.Request, res controller.Resolution) {
	if err := res.Execute(w, r); err != nil {
		d.logger.Error("resolution failed", logging.Field{Key: "path", Value: r.URL.Path}, logging.Err(err))
	}
}

// MountRoutes 为每个 URL 绑定注册 gin 路由，实现 web.Controller
func (d *Dispatcher) MountRoutes(router gin.IRouter) {
	h := gin.WrapH(d)
	seen := make(map[string]bool)

	resolver := d.config.ActionResolver()
	for _, typ := range resolver.ActionBeanTypes() {
		binding, err := controller.ParseURLBinding(resolver.URLBinding(typ))
		if err != nil {
			d.logger.Error("skipping invalid binding", logging.Field{Key: "type", Value: typ.String()}, logging.Err(err))
			continue
		}
		for _, path := range binding.RoutePaths() {
			if seen[path] {
				continue
			}
			seen[path] = true
			router.Any(path, h)
		}
		d.logger.Debug("action mounted", logging.Field{Key: "binding", Value: binding.Pattern()})
	}

	if d.metricsPath != "" && d.gatherer != nil {
		router.GET(d.metricsPath, gin.WrapH(promhttp.HandlerFor(d.gatherer, promhttp.HandlerOpts{})))
	}
}
