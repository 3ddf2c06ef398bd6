// Package options provides plugin.Options implementations: a Viper-backed
// store for real hosts and a map-backed store for tests.
package options

import (
	"time"

	"github.com/spf13/cast"
	"github.com/spf13/viper"

	"github.com/tmn/cinch/pkg/plugin"
)

// Compile-time interface guards.
var (
	_ plugin.Options = (*ViperOptions)(nil)
	_ plugin.Options = (Static)(nil)
)

// ViperOptions exposes a Viper subtree as a plugin option store.
type ViperOptions struct {
	v *viper.Viper
}

// FromViper wraps v; a nil Viper yields an empty store.
func FromViper(v *viper.Viper) *ViperOptions {
	if v == nil {
		v = viper.New()
	}
	return &ViperOptions{v: v}
}

func (o *ViperOptions) IsSet(key string) bool { return o.v.IsSet(key) }

func (o *ViperOptions) Get(key string) any { return o.v.Get(key) }

func (o *ViperOptions) GetString(key string) string { return o.v.GetString(key) }

func (o *ViperOptions) GetInt(key string) int { return o.v.GetInt(key) }

func (o *ViperOptions) GetBool(key string) bool { return o.v.GetBool(key) }

func (o *ViperOptions) GetDuration(key string) time.Duration { return o.v.GetDuration(key) }

// Static is a fixed option mapping, mainly for tests and embedded hosts.
type Static map[string]any

func (s Static) IsSet(key string) bool {
	_, ok := s[key]
	return ok
}

func (s Static) Get(key string) any { return s[key] }

func (s Static) GetString(key string) string { return cast.ToString(s[key]) }

func (s Static) GetInt(key string) int { return cast.ToInt(s[key]) }

func (s Static) GetBool(key string) bool { return cast.ToBool(s[key]) }

func (s Static) GetDuration(key string) time.Duration { return cast.ToDuration(s[key]) }
