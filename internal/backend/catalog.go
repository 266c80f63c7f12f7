package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"waterz/internal/models"
)

const (
	endpointListAll     = "listAll"
	endpointTopYachts   = "topYatch"
	endpointYachtDetail = "yatch-detail"
	endpointIdealYachts = "idealYatchs"
	endpointCurrentRide = "current-rides"
	endpointPrevRides   = "prev-rides"
	endpointRideDetail  = "ride-detail"
)

// yachtList accepts either a bare array or an object wrapping the list.
type yachtList []models.Yacht

func (l *yachtList) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		var items []models.Yacht
		if err := json.Unmarshal(data, &items); err != nil {
			return err
		}
		*l = items
		return nil
	}
	var wrap struct {
		Yachts  []models.Yacht `json:"yachts"`
		Yatches []models.Yacht `json:"yatches"`
	}
	if err := json.Unmarshal(data, &wrap); err != nil {
		return err
	}
	if wrap.Yatches != nil {
		*l = wrap.Yatches
	} else {
		*l = wrap.Yachts
	}
	return nil
}

func (c *Client) checkYachts(endpoint string, yachts []models.Yacht) error {
	for i := range yachts {
		if err := c.check(endpoint, &yachts[i]); err != nil {
			return err
		}
	}
	return nil
}

// ListYachts returns the full catalogue.
func (c *Client) ListYachts(ctx context.Context, auth AuthContext) ([]models.Yacht, error) {
	return c.listYachts(ctx, auth, endpointListAll, "/customer/listAll")
}

func (c *Client) TopYachts(ctx context.Context, auth AuthContext) ([]models.Yacht, error) {
	return c.listYachts(ctx, auth, endpointTopYachts, "/customer/topYatch")
}

func (c *Client) listYachts(ctx context.Context, auth AuthContext, endpoint, path string) ([]models.Yacht, error) {
	var list yachtList
	if c.readCache(ctx, endpoint, &list) {
		return list, nil
	}

	if err := c.doGet(ctx, auth, endpoint, path, &list); err != nil {
		return nil, err
	}
	if err := c.checkYachts(endpoint, list); err != nil {
		return nil, err
	}
	if list == nil {
		list = yachtList{}
	}
	c.writeCache(ctx, endpoint, []models.Yacht(list))
	return list, nil
}

// GetYacht fetches one yacht by id.
func (c *Client) GetYacht(ctx context.Context, auth AuthContext, id string) (*models.Yacht, error) {
	cacheKey := fmt.Sprintf("%s:%s", endpointYachtDetail, id)
	var wrap struct {
		Yacht *models.Yacht `json:"yatch"`
	}

	if c.readCache(ctx, cacheKey, &wrap) && wrap.Yacht != nil {
		return wrap.Yacht, nil
	}

	path := "/customer/yatch-detail/" + url.PathEscape(id)
	if err := c.doGet(ctx, auth, endpointYachtDetail, path, &wrap); err != nil {
		return nil, err
	}
	if wrap.Yacht == nil {
		return nil, c.missing(endpointYachtDetail, "yatch")
	}
	if err := c.check(endpointYachtDetail, wrap.Yacht); err != nil {
		return nil, err
	}
	c.writeCache(ctx, cacheKey, wrap)
	return wrap.Yacht, nil
}

// FilterYachts runs the ideal-yacht search. An empty result is not an error.
func (c *Client) FilterYachts(ctx context.Context, auth AuthContext, filter models.YachtFilter) ([]models.Yacht, error) {
	var wrap struct {
		Yachts []models.Yacht `json:"yatches"`
	}
	if err := c.doPost(ctx, auth, endpointIdealYachts, "/customer/idealYatchs", filter, &wrap); err != nil {
		return nil, err
	}
	if err := c.checkYachts(endpointIdealYachts, wrap.Yachts); err != nil {
		return nil, err
	}
	if wrap.Yachts == nil {
		return []models.Yacht{}, nil
	}
	return wrap.Yachts, nil
}

// CurrentRides lists the caller's upcoming bookings. A missing list is empty.
func (c *Client) CurrentRides(ctx context.Context, auth AuthContext) ([]models.Booking, error) {
	var wrap struct {
		Rides []models.Booking `json:"AllCurrentRides"`
	}
	if err := c.doGet(ctx, auth, endpointCurrentRide, "/customer/current/rides", &wrap); err != nil {
		return nil, err
	}
	return c.rides(endpointCurrentRide, wrap.Rides)
}

func (c *Client) PreviousRides(ctx context.Context, auth AuthContext) ([]models.Booking, error) {
	var wrap struct {
		Rides []models.Booking `json:"AllPreviousRides"`
	}
	if err := c.doGet(ctx, auth, endpointPrevRides, "/customer/prev/rides", &wrap); err != nil {
		return nil, err
	}
	return c.rides(endpointPrevRides, wrap.Rides)
}

// GetRide fetches a single ride of the caller.
func (c *Client) GetRide(ctx context.Context, auth AuthContext, id string) (*models.Booking, error) {
	var wrap struct {
		Ride *models.Booking `json:"ride"`
	}
	if err := c.doGet(ctx, auth, endpointRideDetail, "/customer/rides/"+url.PathEscape(id), &wrap); err != nil {
		return nil, err
	}
	if wrap.Ride == nil {
		return nil, c.missing(endpointRideDetail, "ride")
	}
	if err := c.check(endpointRideDetail, wrap.Ride); err != nil {
		return nil, err
	}
	return wrap.Ride, nil
}

func (c *Client) rides(endpoint string, rides []models.Booking) ([]models.Booking, error) {
	for i := range rides {
		if err := c.check(endpoint, &rides[i]); err != nil {
			return nil, err
		}
	}
	if rides == nil {
		return []models.Booking{}, nil
	}
	return rides, nil
}
