package config

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Policy holds the lab tunables that operators may edit while the service runs.
type Policy struct {
	GracePeriodDays    int          `mapstructure:"gracePeriodDays"`
	ActivePeriodMonths int          `mapstructure:"activePeriodMonths"`
	QuizPassingScore   int          `mapstructure:"quizPassingScore"`
	QuizTotalPoints    float64      `mapstructure:"quizTotalPoints"`
	Baskets            []BasketSeed `mapstructure:"baskets"`
	Zones              []string     `mapstructure:"zones"`
}

// BasketSeed describes one physical basket used to seed an empty Basket Index.
type BasketSeed struct {
	ID   string `mapstructure:"id"`
	Zone string `mapstructure:"zone"`
}

func DefaultPolicy() Policy {
	return Policy{
		GracePeriodDays:    60,
		ActivePeriodMonths: 6,
		QuizPassingScore:   100,
		QuizTotalPoints:    10,
		Zones:              []string{"Cleanroom A", "Cleanroom B"},
	}
}

type PolicyHolder struct {
	current atomic.Value // holds Policy
}

// NewStaticPolicyHolder returns a holder that never reloads.
func NewStaticPolicyHolder(p Policy) *PolicyHolder {
	holder := &PolicyHolder{}
	holder.current.Store(p)
	return holder
}

func NewPolicyHolder() (*PolicyHolder, error) {
	v := viper.New()

	v.SetConfigName("lab")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/labdesk/config")
	v.AddConfigPath("/etc/labdesk")
	v.AddConfigPath(".")

	v.SetEnvPrefix("LABDESK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultPolicy()
	v.SetDefault("policy.gracePeriodDays", defaults.GracePeriodDays)
	v.SetDefault("policy.activePeriodMonths", defaults.ActivePeriodMonths)
	v.SetDefault("policy.quizPassingScore", defaults.QuizPassingScore)
	v.SetDefault("policy.quizTotalPoints", defaults.QuizTotalPoints)
	v.SetDefault("policy.zones", defaults.Zones)

	fileFound := true
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		fileFound = false
	}

	var cfg Policy
	if err := v.UnmarshalKey("policy", &cfg); err != nil {
		return nil, err
	}
	if err := ValidatePolicy(cfg); err != nil {
		return nil, err
	}

	holder := NewStaticPolicyHolder(cfg)
	if !fileFound {
		return holder, nil
	}

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated Policy
		if err := v.UnmarshalKey("policy", &updated); err != nil {
			log.Printf("[lab-policy] reload failed: %v", err)
			return
		}
		if err := ValidatePolicy(updated); err != nil {
			log.Printf("[lab-policy] invalid config ignored: %v", err)
			return
		}
		holder.current.Store(updated)
		log.Printf("[lab-policy] reloaded from %s", e.Name)
	})

	return holder, nil
}

func (h *PolicyHolder) Get() Policy {
	return h.current.Load().(Policy)
}

func ValidatePolicy(cfg Policy) error {
	if cfg.GracePeriodDays < 0 {
		return errors.New("policy.gracePeriodDays cannot be negative")
	}
	if cfg.ActivePeriodMonths <= 0 {
		return errors.New("policy.activePeriodMonths must be positive")
	}
	if cfg.QuizTotalPoints <= 0 {
		return errors.New("policy.quizTotalPoints must be positive")
	}
	seen := make(map[string]struct{}, len(cfg.Baskets))
	for _, b := range cfg.Baskets {
		id := strings.TrimSpace(b.ID)
		if id == "" || strings.TrimSpace(b.Zone) == "" {
			return errors.New("policy.baskets entries need id and zone")
		}
		if _, ok := seen[id]; ok {
			return fmt.Errorf("policy.baskets: duplicate id %s", id)
		}
		seen[id] = struct{}{}
	}
	return nil
}
