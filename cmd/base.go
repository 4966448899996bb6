// Package cmd is the base package for the executables built from go-meshsync
package cmd

import (
	"fmt"
	"reflect"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	bc "github.com/meshsync/go-meshsync/config"
	"github.com/meshsync/go-meshsync/config/presets"
)

var (
	// Version is the app's semantic version. Designed to be overwritten by make.
	Version string

	// Branch is the git branch used to build the App. Designed to be overwritten by make.
	Branch string

	// Commit is the git commit used to build the app. Designed to be overwritten by make.
	Commit string
)

// LoadConfig builds the node config from, in increasing precedence, the
// defaults or the selected preset, the config file and changed cli flags.
func LoadConfig(cmd *cobra.Command) (*bc.Config, error) {
	conf := bc.DefaultConfig()
	if name := viper.GetString("preset"); len(name) > 0 {
		preset, err := presets.Get(name)
		if err != nil {
			return nil, err
		}
		conf = preset
	}

	// only an explicitly passed file is required to exist
	if fileLocation := viper.GetString("config"); fileLocation != "" {
		vip := viper.New()
		if err := bc.LoadConfig(fileLocation, vip); err != nil {
			return nil, err
		}
		if err := bc.Unmarshal(vip, &conf); err != nil {
			return nil, err
		}
	}
	if err := EnsureCLIFlags(cmd, &conf); err != nil {
		return nil, fmt.Errorf("mapping cli flags to config: %w", err)
	}
	if err := conf.Validate(); err != nil {
		return nil, err
	}
	return &conf, nil
}

// EnsureCLIFlags copies changed flags into the config field whose
// mapstructure tag equals the flag name. Sections are searched in field
// order and the first match wins.
func EnsureCLIFlags(cmd *cobra.Command, appCFG *bc.Config) error {
	var err error
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		if !f.Changed || err != nil {
			return
		}
		_, err = assignField(reflect.ValueOf(appCFG).Elem(), f.Name)
	})
	return err
}

var durationType = reflect.TypeOf(time.Duration(0))

func assignField(elem reflect.Value, name string) (bool, error) {
	p := elem.Type()
	for i := 0; i < p.NumField(); i++ {
		field := elem.Field(i)
		if field.Kind() == reflect.Struct || p.Field(i).Tag.Get("mapstructure") != name {
			continue
		}
		var val any
		switch {
		case field.Type() == durationType:
			val = viper.GetDuration(name)
		case field.Kind() == reflect.Bool:
			val = viper.GetBool(name)
		case field.Kind() == reflect.String:
			val = viper.GetString(name)
		case field.Kind() == reflect.Int:
			val = viper.GetInt(name)
		case field.Kind() == reflect.Uint16:
			val = uint16(viper.GetUint(name))
		case field.Kind() == reflect.Uint64:
			val = viper.GetUint64(name)
		case field.Kind() == reflect.Float64:
			val = viper.GetFloat64(name)
		case field.Type().String() == "[]string":
			val = viper.GetStringSlice(name)
		default:
			return false, fmt.Errorf("flag %s: unsupported field type %s", name, field.Type())
		}
		field.Set(reflect.ValueOf(val).Convert(field.Type()))
		return true, nil
	}
	for i := 0; i < p.NumField(); i++ {
		field := elem.Field(i)
		if field.Kind() != reflect.Struct {
			continue
		}
		if ok, err := assignField(field, name); ok || err != nil {
			return ok, err
		}
	}
	return false, nil
}
