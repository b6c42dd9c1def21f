package overfast

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/tidwall/gjson"
)

// PlayerIDFromBattletag converts "Name#1234" into the API form "Name-1234"
func PlayerIDFromBattletag(tag string) string {
	return strings.ReplaceAll(strings.TrimSpace(tag), "#", "-")
}

// Summary is the subset of the player summary the dashboard shows
type Summary struct {
	Username         string `json:"username"`
	Avatar           string `json:"avatar,omitempty"`
	Title            string `json:"title,omitempty"`
	EndorsementLevel *int   `json:"endorsementLevel,omitempty"`
	Privacy          string `json:"privacy,omitempty"`
}

// StatsQuery selects the career stats view; empty Platform/Hero are omitted
type StatsQuery struct {
	Gamemode string
	Platform string
	Hero     string
}

func (q StatsQuery) values() url.Values {
	v := url.Values{}
	v.Set("gamemode", q.Gamemode)
	if q.Platform != "" {
		v.Set("platform", q.Platform)
	}
	if q.Hero != "" {
		v.Set("hero", q.Hero)
	}
	return v
}

// Summary fetches /players/{playerID}/summary
func (c *Client) Summary(ctx context.Context, playerID string) (*Summary, error) {
	body, err := c.Get(ctx, "/players/"+url.PathEscape(playerID)+"/summary", nil)
	if err != nil {
		return nil, err
	}
	return ParseSummary(body)
}

// CareerStats fetches /players/{playerID}/stats, a mapping of hero key to
// nested stat groups. The body is returned untouched so key order survives.
func (c *Client) CareerStats(ctx context.Context, playerID string, q StatsQuery) (json.RawMessage, error) {
	return c.Get(ctx, "/players/"+url.PathEscape(playerID)+"/stats", q.values())
}

// ParseSummary extracts the displayed summary fields. Missing or oddly typed
// fields are left empty.
func ParseSummary(body []byte) (*Summary, error) {
	root := gjson.ParseBytes(body)
	if !root.IsObject() {
		return nil, fmt.Errorf("summary is not a JSON object: %w", ErrMalformedJSON)
	}

	s := &Summary{
		Username: text(root.Get("username")),
		Avatar:   text(root.Get("avatar")),
		Title:    text(root.Get("title")),
		Privacy:  text(root.Get("privacy")),
	}
	if lvl := root.Get("endorsement.level"); lvl.Type == gjson.Number {
		n := int(lvl.Int())
		s.EndorsementLevel = &n
	}
	return s, nil
}

func text(r gjson.Result) string {
	switch r.Type {
	case gjson.String:
		return r.Str
	case gjson.Number, gjson.True, gjson.False:
		return r.Raw
	default:
		return ""
	}
}
