package libapi

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/Toskysun/sdu-seat/internal/domain/booking"
)

// Book posts one reservation attempt for a seat and segment and returns
// the provider's raw status code and message untouched; classification is
// the engine's job. A "预约超时" (booking timed out) message is a provider
// hiccup and re-issued up to the client's retry budget.
func (c *Client) Book(ctx context.Context, seat booking.Seat, period booking.Period, date string, session booking.SessionState) (int, string, error) {
	form := url.Values{
		"access_token":   {session.AccessToken},
		"userid":         {session.UserID},
		"segment":        {strconv.Itoa(period.ID)},
		"type":           {"1"},
		"operateChannel": {"2"},
	}
	areaID := 0
	if seat.Area != nil {
		areaID = seat.Area.ID
	}
	referer := fmt.Sprintf("%s/web/seat3?area=%d&segment=%d&day=%s&startTime=%s&endTime=%s",
		c.base, areaID, period.ID, date, period.StartTime, period.EndTime)
	path := fmt.Sprintf("/api.php/spaces/%d/book", seat.ID)

	var (
		env     envelope
		lastErr error
	)
	for attempt := 0; attempt <= c.retries; attempt++ {
		env, lastErr = c.doJSON(ctx, http.MethodPost, path, referer, nil, form)
		if lastErr != nil {
			if ctx.Err() != nil {
				return 0, "", lastErr
			}
			c.log.Warn("booking request failed, retrying",
				zap.String("seat", seat.FullName()), zap.Error(lastErr))
			continue
		}
		if strings.Contains(env.Msg, "预约超时") && attempt < c.retries {
			continue
		}
		return env.Status, env.Msg, nil
	}
	if lastErr != nil {
		return 0, "", fmt.Errorf("book seat %s: %w", seat.FullName(), lastErr)
	}
	return env.Status, env.Msg, nil
}

// Cancel deletes an existing reservation by its booking id.
func (c *Client) Cancel(ctx context.Context, bookingID string, session booking.SessionState) error {
	form := url.Values{
		"_method":        {"delete"},
		"id":             {bookingID},
		"userid":         {session.UserID},
		"access_token":   {session.AccessToken},
		"operateChannel": {"2"},
	}
	env, err := c.doJSON(ctx, http.MethodPost, "/api.php/profile/books/"+bookingID, c.base+"/user/index/book", nil, form)
	if err != nil {
		return err
	}
	if env.Status != 1 {
		return fmt.Errorf("cancel booking %s: %s", bookingID, env.Msg)
	}
	c.log.Info("booking cancelled", zap.String("booking", bookingID))
	return nil
}
