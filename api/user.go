package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-resty/resty/v2"
)

// Predictions pages through the caller's prediction history, newest first.
func (c *Client) Predictions(ctx context.Context, skip, limit int) ([]Prediction, error) {
	var out []Prediction
	err := c.send(ctx, reqContext{method: http.MethodGet, path: EndpointPredictions}, func(req *resty.Request) {
		req.SetQueryParams(map[string]string{
			"skip":  strconv.Itoa(skip),
			"limit": strconv.Itoa(limit),
		})
	}, &out)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Statistics(ctx context.Context) (*Statistics, error) {
	var out Statistics
	err := c.send(ctx, reqContext{method: http.MethodGet, path: EndpointStatistics}, nil, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// PublicEmotionDistribution needs no session; it is on the exempt list and
// goes out without a bearer token.
func (c *Client) PublicEmotionDistribution(ctx context.Context, days int) (EmotionDistribution, error) {
	var out EmotionDistribution
	err := c.send(ctx, reqContext{method: http.MethodGet, path: EndpointPublicEmotions}, func(req *resty.Request) {
		req.SetQueryParam("days", strconv.Itoa(days))
	}, &out)
	if err != nil {
		return nil, err
	}
	return out, nil
}
