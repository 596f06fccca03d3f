package commands

import (
	"fmt"
	"strings"

	"cloud.google.com/go/civil"
)

func parseDate(v, flag string) (civil.Date, error) {
	d, err := civil.ParseDate(strings.TrimSpace(v))
	if err != nil {
		return civil.Date{}, fmt.Errorf("--%s: expected YYYY-MM-DD, got %q", flag, v)
	}
	return d, nil
}

func optionalDate(v, flag string) (*civil.Date, error) {
	if strings.TrimSpace(v) == "" {
		return nil, nil
	}
	d, err := parseDate(v, flag)
	if err != nil {
		return nil, err
	}
	return &d, nil
}
