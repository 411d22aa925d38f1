package libapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"go.uber.org/zap"

	"github.com/Toskysun/sdu-seat/internal/domain/booking"
)

// Catalog calls below implement booking.Catalog against the v3 area API.
// The provider has shipped three shapes for data.list over time; decoding
// tries each known variant explicitly and fails on anything else.

type areaItem struct {
	ID               int             `json:"id"`
	Name             string          `json:"name"`
	AreaName         string          `json:"area_name"`
	ParentID         int             `json:"parentId"`
	TotalCount       int             `json:"TotalCount"`
	UnavailableSpace int             `json:"UnavailableSpace"`
	Status           int             `json:"status"`
	AreaTimes        json.RawMessage `json:"area_times"`
}

// areaListVariants: data.list may be an object holding "seatinfo", an
// object holding "childArea", or a bare array.
func decodeAreaList(data json.RawMessage) ([]areaItem, error) {
	var wrapper struct {
		List json.RawMessage `json:"list"`
	}
	if err := json.Unmarshal(data, &wrapper); err != nil || len(wrapper.List) == 0 {
		return nil, fmt.Errorf("area response has no data.list")
	}

	var obj struct {
		SeatInfo  []areaItem `json:"seatinfo"`
		ChildArea []areaItem `json:"childArea"`
	}
	if err := json.Unmarshal(wrapper.List, &obj); err == nil {
		if len(obj.SeatInfo) > 0 {
			return obj.SeatInfo, nil
		}
		if len(obj.ChildArea) > 0 {
			return obj.ChildArea, nil
		}
	}

	var arr []areaItem
	if err := json.Unmarshal(wrapper.List, &arr); err == nil && len(arr) > 0 {
		return arr, nil
	}

	return nil, fmt.Errorf("data.list matches no known area shape")
}

type periodItem struct {
	BookTimeID int    `json:"bookTimeId"`
	StartTime  string `json:"startTime"`
	EndTime    string `json:"endTime"`
	BeginTime  struct {
		Date string `json:"date"`
	} `json:"beginTime"`
}

func decodePeriods(areaTimes json.RawMessage) []booking.Period {
	if len(areaTimes) == 0 {
		return nil
	}
	var wrapper struct {
		Data struct {
			List []periodItem `json:"list"`
		} `json:"data"`
	}
	if err := json.Unmarshal(areaTimes, &wrapper); err != nil {
		return nil
	}
	out := make([]booking.Period, 0, len(wrapper.Data.List))
	for _, p := range wrapper.Data.List {
		date := p.BeginTime.Date
		if len(date) > 10 {
			date = date[:10]
		}
		out = append(out, booking.Period{
			ID:        p.BookTimeID,
			StartTime: p.StartTime,
			EndTime:   p.EndTime,
			Date:      date,
		})
	}
	return out
}

func (it areaItem) toArea() booking.Area {
	name := it.Name
	if name == "" {
		name = it.AreaName
	}
	free := it.TotalCount - it.UnavailableSpace
	if it.TotalCount == 0 && it.Status == 1 {
		// new shape carries no counts, only an availability flag
		free = 1
	}
	return booking.Area{
		ID:         it.ID,
		Name:       name,
		ParentID:   it.ParentID,
		FreeSeats:  free,
		TotalSeats: it.TotalCount,
		Periods:    decodePeriods(it.AreaTimes),
	}
}

func (c *Client) fetchAreas(ctx context.Context, date string) ([]booking.Area, error) {
	q := url.Values{"date": {date}}
	env, err := c.doJSON(ctx, http.MethodGet, "/api.php/v3areas", "", q, nil)
	if err != nil {
		return nil, &booking.CatalogError{Err: err}
	}
	if env.Status != 1 {
		return nil, &booking.CatalogError{Err: fmt.Errorf("area listing rejected: %s", env.Msg)}
	}
	items, err := decodeAreaList(env.Data)
	if err != nil {
		return nil, &booking.CatalogError{Err: err}
	}
	out := make([]booking.Area, 0, len(items))
	for _, it := range items {
		out = append(out, it.toArea())
	}
	return out, nil
}

// Libraries returns the top-level buildings keyed by name.
func (c *Client) Libraries(ctx context.Context, date string) (map[string]booking.Area, error) {
	areas, err := c.fetchAreas(ctx, date)
	if err != nil {
		return nil, err
	}
	libs := make(map[string]booking.Area)
	for _, a := range areas {
		if a.ParentID == 0 {
			libs[a.Name] = a
		}
	}
	return libs, nil
}

// SubAreas returns the rooms under parent keyed by name, with their
// bookable periods for the date.
func (c *Client) SubAreas(ctx context.Context, parent booking.Area, date string) (map[string]booking.Area, error) {
	areas, err := c.fetchAreas(ctx, date)
	if err != nil {
		return nil, err
	}
	subs := make(map[string]booking.Area)
	for _, a := range areas {
		if a.ParentID == parent.ID {
			subs[a.Name] = a
		}
	}
	if len(subs) == 0 {
		return nil, &booking.CatalogError{Area: parent.Name, Err: fmt.Errorf("no sub-areas for area %d", parent.ID)}
	}
	return subs, nil
}

type seatItem struct {
	ID         int    `json:"id"`
	Name       string `json:"name"`
	No         string `json:"no"`
	Status     int    `json:"status"`
	StatusName string `json:"status_name"`
}

// Seats lists every seat of an area for one period, keyed by seat name.
func (c *Client) Seats(ctx context.Context, area booking.Area, period booking.Period, date string) (map[string]booking.Seat, error) {
	q := url.Values{
		"area":      {strconv.Itoa(area.ID)},
		"segment":   {strconv.Itoa(period.ID)},
		"day":       {date},
		"startTime": {period.StartTime},
		"endTime":   {period.EndTime},
	}
	referer := fmt.Sprintf("%s/web/seat3?area=%d&segment=%d&day=%s&startTime=%s&endTime=%s",
		c.base, area.ID, period.ID, date, period.StartTime, period.EndTime)
	env, err := c.doJSON(ctx, http.MethodGet, "/api.php/spaces_old", referer, q, nil)
	if err != nil {
		return nil, &booking.CatalogError{Area: area.Name, Period: period.Label(), Err: err}
	}
	if env.Status != 1 {
		return nil, &booking.CatalogError{Area: area.Name, Period: period.Label(), Err: fmt.Errorf("seat listing rejected: %s", env.Msg)}
	}

	var wrapper struct {
		List []seatItem `json:"list"`
	}
	if err := json.Unmarshal(env.Data, &wrapper); err != nil {
		return nil, &booking.CatalogError{Area: area.Name, Period: period.Label(), Err: fmt.Errorf("decode seats: %w", err)}
	}

	areaRef := area
	seats := make(map[string]booking.Seat, len(wrapper.List))
	for _, it := range wrapper.List {
		name := it.Name
		if name == "" {
			name = it.No
		}
		seats[name] = booking.Seat{
			ID:     it.ID,
			Name:   name,
			Status: booking.SeatStatus(it.Status),
			Area:   &areaRef,
		}
	}
	c.log.Debug("fetched seats",
		zap.String("area", area.Name),
		zap.String("period", period.Label()),
		zap.Int("count", len(seats)))
	return seats, nil
}
