// Package flagx 根据结构体 tag 注册和读取 cobra 命令行参数
//
//	type ServeOptions struct {
//	    ConfigDir string        `flag:"config,c" default:"./configs" usage:"配置目录"`
//	    Timeout   time.Duration `flag:"timeout" default:"10s"`
//	}
//
//	var opts ServeOptions
//	_ = flagx.Bind(cmd, &opts)   // 注册 flag
//	_ = flagx.Parse(cmd, &opts)  // RunE 中读取
package flagx

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var (
	errNotStructPointer = errors.New("target must be a pointer to struct")
	durationType        = reflect.TypeOf(time.Duration(0))
)

// field 一个带 flag tag 的字段
type field struct {
	value    reflect.Value
	name     string
	short    string
	usage    string
	def      string
	required bool
}

func fields(target interface{}) ([]field, error) {
	v := reflect.ValueOf(target)
	if v.Kind() != reflect.Ptr || v.Elem().Kind() != reflect.Struct {
		return nil, errNotStructPointer
	}
	v = v.Elem()
	t := v.Type()

	var out []field
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		tag := sf.Tag.Get("flag")
		if tag == "" || !v.Field(i).CanSet() {
			continue
		}
		name, short, _ := strings.Cut(tag, ",")
		out = append(out, field{
			value:    v.Field(i),
			name:     name,
			short:    short,
			usage:    sf.Tag.Get("usage"),
			def:      sf.Tag.Get("default"),
			required: sf.Tag.Get("required") == "true",
		})
	}
	return out, nil
}

// Bind 为每个带 flag tag 的字段注册 flag
// 支持 string、int、bool、time.Duration、[]string
func Bind(cmd *cobra.Command, target interface{}) error {
	fs, err := fields(target)
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	for _, f := range fs {
		if err := register(flags, f); err != nil {
			return fmt.Errorf("flag %s: %w", f.name, err)
		}
		if f.required {
			if err := cmd.MarkFlagRequired(f.name); err != nil {
				return err
			}
		}
	}
	return nil
}

func register(flags *pflag.FlagSet, f field) error {
	if f.value.Type() == durationType {
		def, err := parseDuration(f.def)
		if err != nil {
			return err
		}
		flags.DurationP(f.name, f.short, def, f.usage)
		return nil
	}

	switch f.value.Kind() {
	case reflect.String:
		flags.StringP(f.name, f.short, f.def, f.usage)
	case reflect.Int:
		def := 0
		if f.def != "" {
			n, err := strconv.Atoi(f.def)
			if err != nil {
				return fmt.Errorf("invalid default %q: %w", f.def, err)
			}
			def = n
		}
		flags.IntP(f.name, f.short, def, f.usage)
	case reflect.Bool:
		def := false
		if f.def != "" {
			b, err := strconv.ParseBool(f.def)
			if err != nil {
				return fmt.Errorf("invalid default %q: %w", f.def, err)
			}
			def = b
		}
		flags.BoolP(f.name, f.short, def, f.usage)
	case reflect.Slice:
		if f.value.Type().Elem().Kind() != reflect.String {
			return fmt.Errorf("unsupported slice element type: %s", f.value.Type().Elem())
		}
		var def []string
		if f.def != "" {
			def = strings.Split(f.def, ",")
		}
		flags.StringSliceP(f.name, f.short, def, f.usage)
	default:
		return fmt.Errorf("unsupported field type: %s", f.value.Type())
	}
	return nil
}

func parseDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid default %q: %w", s, err)
	}
	return d, nil
}

// Parse 把已解析的 flag 值写回结构体
func Parse(cmd *cobra.Command, target interface{}) error {
	fs, err := fields(target)
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	for _, f := range fs {
		if flags.Lookup(f.name) == nil {
			return fmt.Errorf("flag %s is not defined", f.name)
		}
		if err := read(flags, f); err != nil {
			return fmt.Errorf("flag %s: %w", f.name, err)
		}
	}
	return nil
}

func read(flags *pflag.FlagSet, f field) error {
	if f.value.Type() == durationType {
		d, err := flags.GetDuration(f.name)
		if err != nil {
			return err
		}
		f.value.SetInt(int64(d))
		return nil
	}

	switch f.value.Kind() {
	case reflect.String:
		s, err := flags.GetString(f.name)
		if err != nil {
			return err
		}
		f.value.SetString(s)
	case reflect.Int:
		n, err := flags.GetInt(f.name)
		if err != nil {
			return err
		}
		f.value.SetInt(int64(n))
	case reflect.Bool:
		b, err := flags.GetBool(f.name)
		if err != nil {
			return err
		}
		f.value.SetBool(b)
	case reflect.Slice:
		ss, err := flags.GetStringSlice(f.name)
		if err != nil {
			return err
		}
		f.value.Set(reflect.ValueOf(ss))
	default:
		return fmt.Errorf("unsupported field type: %s", f.value.Type())
	}
	return nil
}
