package config

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/hashstructure"
	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

const (
	// LogicAll accepts every formula the engine understands.
	LogicAll = "ALL"
	// LogicBool is quantifier-free propositional logic.
	LogicBool = "QF_BOOL"
)

// Logics lists the recognized logic names.
var Logics = []string{LogicAll, LogicBool}

// KnownLogic returns true if name is a recognized logic.
func KnownLogic(name string) bool {
	return slices.Contains(Logics, name)
}

// Params is a bundle of named options as supplied by a caller or read
// from a configuration file. Values may be native Go values or their
// textual forms.
type Params map[string]interface{}

// Config is the engine-native form of Params. The zero value is not
// meaningful; start from Default.
type Config struct {
	Timeout          time.Duration `mapstructure:"timeout" validate:"gte=0"`
	PollInterval     time.Duration `mapstructure:"poll_interval" validate:"gt=0"`
	ProgressInterval time.Duration `mapstructure:"progress_interval" validate:"gte=0"`
	Logic            string        `mapstructure:"logic" validate:"omitempty,oneof=ALL QF_BOOL"`
	Model            bool          `mapstructure:"model"`
	UnsatCore        bool          `mapstructure:"unsat_core"`
	Proof            bool          `mapstructure:"proof"`
	Relevancy        bool          `mapstructure:"relevancy"`
	MaxVars          int           `mapstructure:"max_vars" validate:"gte=0"`
}

// Default returns the configuration in effect when no options are
// given.
func Default() Config {
	return Config{
		PollInterval: 5 * time.Millisecond,
		Model:        true,
		UnsatCore:    true,
		Relevancy:    true,
	}
}

// OptionError describes why a single named option was rejected.
type OptionError struct {
	Name   string
	Reason string
}

func (e OptionError) Error() string {
	return fmt.Sprintf("%s: %s", e.Name, e.Reason)
}

// Error is returned by Translate and lists every rejected option,
// ordered by name.
type Error []OptionError

func (e Error) Error() string {
	s := make([]string, len(e))
	for i, oe := range e {
		s[i] = oe.Error()
	}
	return fmt.Sprintf("invalid parameters: %s", strings.Join(s, ", "))
}

var validate = validator.New()

// Translate returns a copy of c with every option in p applied. Keys
// are applied independently and in sorted order, so the outcome does
// not depend on map iteration order. If any option is unrecognized or
// cannot be decoded, or the result is invalid, Translate returns c
// unchanged together with an Error naming each offending option.
func (c Config) Translate(p Params) (Config, error) {
	known := fieldsByName()
	next := c
	var errs Error

	names := maps.Keys(p)
	slices.Sort(names)
	for _, name := range names {
		if _, ok := known[name]; !ok {
			errs = append(errs, OptionError{Name: name, Reason: "unrecognized option"})
			continue
		}
		if err := decode(&next, name, p[name]); err != nil {
			errs = append(errs, OptionError{Name: name, Reason: err.Error()})
		}
	}
	if len(errs) == 0 {
		errs = append(errs, invalid(next, known)...)
	}
	if len(errs) > 0 {
		sort.SliceStable(errs, func(i, j int) bool { return errs[i].Name < errs[j].Name })
		return c, errs
	}
	return next, nil
}

// Params returns the named form of c.
func (c Config) Params() Params {
	p := Params{}
	v := reflect.ValueOf(c)
	for name, i := range fieldsByName() {
		p[name] = v.Field(i).Interface()
	}
	return p
}

// Hash fingerprints c.
func (c Config) Hash() uint64 {
	h, err := hashstructure.Hash(c, nil)
	if err != nil {
		// Config only contains hashable kinds.
		panic(err)
	}
	return h
}

func decode(dst *Config, name string, value interface{}) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		Result:           dst,
	})
	if err != nil {
		return err
	}
	if err := decoder.Decode(map[string]interface{}{name: value}); err != nil {
		var merr *mapstructure.Error
		if errors.As(err, &merr) && len(merr.Errors) > 0 {
			return errors.New(strings.Join(merr.Errors, "; "))
		}
		return err
	}
	return nil
}

func invalid(c Config, known map[string]int) Error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return Error{{Name: "config", Reason: err.Error()}}
	}
	byField := make(map[string]string, len(known))
	t := reflect.TypeOf(c)
	for name, i := range known {
		byField[t.Field(i).Name] = name
	}
	var errs Error
	for _, fe := range verrs {
		errs = append(errs, OptionError{
			Name:   byField[fe.StructField()],
			Reason: fmt.Sprintf("failed %q constraint (value %v)", constraint(fe), fe.Value()),
		})
	}
	return errs
}

func constraint(fe validator.FieldError) string {
	if fe.Param() == "" {
		return fe.Tag()
	}
	return fe.Tag() + "=" + fe.Param()
}

// fieldsByName maps option names to Config field indices.
func fieldsByName() map[string]int {
	t := reflect.TypeOf(Config{})
	result := make(map[string]int, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		if name := t.Field(i).Tag.Get("mapstructure"); name != "" {
			result[name] = i
		}
	}
	return result
}
