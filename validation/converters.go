package validation

import (
	"encoding"
	"errors"
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/language"
)

// 转换失败的消息键
const (
	KeyInvalidNumber   = "converter.number.invalidNumber"
	KeyOutOfRange      = "converter.number.outOfRange"
	KeyInvalidDate     = "converter.date.invalidDate"
	KeyInvalidDuration = "converter.duration.invalidDuration"
	KeyInvalidUUID     = "converter.uuid.invalidUUID"
	KeyInvalidValue    = "converter.invalidValue"
)

func convertString(input string, target reflect.Type) (any, error) {
	return reflect.ValueOf(input).Convert(target).Interface(), nil
}

var truthy = map[string]bool{"true": true, "t": true, "yes": true, "y": true, "on": true}

// convertBool 从不失败：真值词或非零数字为 true，其余为 false
func convertBool(input string, target reflect.Type) (any, error) {
	s := strings.ToLower(strings.TrimSpace(input))
	b := truthy[s]
	if !b {
		if f, err := strconv.ParseFloat(s, 64); err == nil && f != 0 {
			b = true
		}
	}
	return reflect.ValueOf(b).Convert(target).Interface(), nil
}

// numberFormat 区域相关的分组符与小数点
type numberFormat struct {
	group   rune
	decimal rune
}

var (
	dotDecimal   = numberFormat{group: ',', decimal: '.'}
	commaDecimal = numberFormat{group: '.', decimal: ','}
	spaceGroup   = numberFormat{group: ' ', decimal: ','}
)

var numberFormats = map[string]numberFormat{
	"de": commaDecimal, "es": commaDecimal, "it": commaDecimal, "nl": commaDecimal,
	"pt": commaDecimal, "id": commaDecimal, "tr": commaDecimal, "da": commaDecimal,
	"el": commaDecimal,
	"fr": spaceGroup, "ru": spaceGroup, "pl": spaceGroup, "cs": spaceGroup,
	"sv": spaceGroup, "nb": spaceGroup, "fi": spaceGroup, "uk": spaceGroup,
}

func numberFormatFor(locale language.Tag) numberFormat {
	base, _ := locale.Base()
	if f, ok := numberFormats[base.String()]; ok {
		return f
	}
	return dotDecimal
}

// normalize 去掉分组符与空白，小数点统一为 "."
func (f numberFormat) normalize(input string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(input) {
		switch {
		case r == f.group, r == ' ', r == '\u00a0', r == '\u202f':
		case r == f.decimal:
			b.WriteRune('.')
		default:
			b.WriteRune(r)
		}
	}
	return strings.TrimPrefix(b.String(), "+")
}

type numberConverter struct {
	format numberFormat
}

func (c numberConverter) Convert(input string, target reflect.Type) (any, error) {
	s := c.format.normalize(input)
	if s == "" {
		return nil, conversionError(KeyInvalidNumber)
	}

	out := reflect.New(target).Elem()
	switch target.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		bits := target.Bits()
		n, err := strconv.ParseInt(s, 10, bits)
		if err != nil {
			if errors.Is(err, strconv.ErrRange) {
				lo := int64(-1) << (bits - 1)
				return nil, conversionError(KeyOutOfRange, lo, -(lo + 1))
			}
			return nil, conversionError(KeyInvalidNumber)
		}
		out.SetInt(n)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		bits := target.Bits()
		n, err := strconv.ParseUint(s, 10, bits)
		if err != nil {
			if errors.Is(err, strconv.ErrRange) {
				return nil, conversionError(KeyOutOfRange, 0, uint64(math.MaxUint64)>>(64-bits))
			}
			return nil, conversionError(KeyInvalidNumber)
		}
		out.SetUint(n)
	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(s, target.Bits())
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, conversionError(KeyInvalidNumber)
		}
		out.SetFloat(f)
	default:
		return nil, conversionError(KeyInvalidNumber)
	}
	return out.Interface(), nil
}

var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"2006/01/02",
}

func convertTime(input string, _ reflect.Type) (any, error) {
	s := strings.TrimSpace(input)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return nil, conversionError(KeyInvalidDate)
}

const maxDurationSeconds = int64(math.MaxInt64 / int64(time.Second))

// convertDuration 接受 "1h30m" 形式，纯数字按秒处理
func convertDuration(input string, _ reflect.Type) (any, error) {
	s := strings.TrimSpace(input)
	if d, err := time.ParseDuration(s); err == nil {
		return d, nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		if errors.Is(err, strconv.ErrRange) {
			return nil, conversionError(KeyOutOfRange, -maxDurationSeconds, maxDurationSeconds)
		}
		return nil, conversionError(KeyInvalidDuration)
	}
	if n > maxDurationSeconds || n < -maxDurationSeconds {
		return nil, conversionError(KeyOutOfRange, -maxDurationSeconds, maxDurationSeconds)
	}
	return time.Duration(n) * time.Second, nil
}

func convertUUID(input string, _ reflect.Type) (any, error) {
	id, err := uuid.Parse(strings.TrimSpace(input))
	if err != nil {
		return nil, conversionError(KeyInvalidUUID)
	}
	return id, nil
}

func convertText(input string, target reflect.Type) (any, error) {
	p := reflect.New(target)
	if err := p.Interface().(encoding.TextUnmarshaler).UnmarshalText([]byte(input)); err != nil {
		return nil, conversionError(KeyInvalidValue, err.Error())
	}
	return p.Elem().Interface(), nil
}
