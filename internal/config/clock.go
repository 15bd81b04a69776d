package config

import (
	"fmt"
	"time"
)

// Clock время суток с точностью до минуты ("16:55")
type Clock struct {
	Hour   int
	Minute int
}

// ParseClock разбирает строку формата HH:MM
func ParseClock(s string) (Clock, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return Clock{}, fmt.Errorf("ошибка разбора времени %q: %w", s, err)
	}
	return Clock{Hour: t.Hour(), Minute: t.Minute()}, nil
}

// Minutes возвращает количество минут от полуночи
func (c Clock) Minutes() int {
	return c.Hour*60 + c.Minute
}

func (c Clock) Valid() bool {
	return c.Hour >= 0 && c.Hour < 24 && c.Minute >= 0 && c.Minute < 60
}

func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
}

// UnmarshalYAML реализует yaml.Unmarshaler
func (c *Clock) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	parsed, err := ParseClock(s)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// MarshalYAML реализует yaml.Marshaler
func (c Clock) MarshalYAML() (interface{}, error) {
	return c.String(), nil
}
