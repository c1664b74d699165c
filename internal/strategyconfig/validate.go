package strategyconfig

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/wonny/quantmon/internal/contracts"
)

// ValidationError 검증 실패 (프로그램 중단)
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// 에러 메시지에 yaml 키 이름을 사용
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate checks all required constraints
// 실패 시 error 반환 (프로그램 중단)
func Validate(cfg *Config) error {
	// === 필드 단위 (struct tag) ===
	if err := validate.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return ValidationError{fieldPath(fe.Namespace()), ruleMessage(fe)}
		}
		return err
	}

	// === Integrity (교차 필드) ===
	in := cfg.Integrity
	if in.BadTickReversion >= in.BadTickSpike {
		return ValidationError{"integrity.bad_tick_reversion", "must be < bad_tick_spike"}
	}
	seen := make(map[string]bool, len(in.ExcludeFromSplit))
	for _, s := range in.ExcludeFromSplit {
		if s != strings.ToUpper(strings.TrimSpace(s)) {
			return ValidationError{"integrity.exclude_from_split", fmt.Sprintf("symbol %q must be upper-case without spaces", s)}
		}
		if seen[s] {
			return ValidationError{"integrity.exclude_from_split", fmt.Sprintf("duplicate symbol %q", s)}
		}
		seen[s] = true
	}

	// === Training ===
	if cfg.Training.MinTrainRows <= len(contracts.FeatureNames) {
		return ValidationError{"training.min_train_rows", "must exceed the number of features"}
	}

	return nil
}

// fieldPath turns "Config.integrity.segment_gap" into "integrity.segment_gap"
func fieldPath(ns string) string {
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func ruleMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "required"
	case "gt":
		return "must be > " + fe.Param()
	case "gte":
		return "must be >= " + fe.Param()
	case "lt":
		return "must be < " + fe.Param()
	case "lte":
		return "must be <= " + fe.Param()
	default:
		return "failed rule " + fe.Tag()
	}
}
