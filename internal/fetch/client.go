package fetch

import (
	"encoding/json"
	"io"
	"net/http"

	"context"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/LogicUI/zustand-in-depth/internal/core"
)

// Client fetches the comment collection over HTTP. Any transport
// failure, non-2xx status or malformed record is reported as a network
// error; the caller decides what to do with it (no retries here).
type Client struct {
	client *http.Client

	url       string
	userAgent string
	validate  *validator.Validate
	logger    *zap.Logger
}

type ClientOptions struct {
	HTTPClient *http.Client `validate:"required"`
	URL        string       `validate:"required,url"`
	UserAgent  string       `validate:"required"`
	Logger     *zap.Logger
}

func NewClient(opts *ClientOptions) (*Client, error) {
	if opts == nil {
		return nil, core.NewInternalError("client options required", nil, "fetch.NewClient")
	}
	if err := validator.New().Struct(opts); err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		client:    opts.HTTPClient,
		url:       opts.URL,
		userAgent: opts.UserAgent,
		validate:  validator.New(),
		logger:    logger,
	}, nil
}

func (c *Client) FetchComments(ctx context.Context) ([]core.Comment, error) {
	const op = "fetch.Client.FetchComments"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, core.NewInternalError("create request", err, op)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, core.NewNetworkError("comments fetch failed", err, op)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		c.logger.Debug("comments fetch bad status",
			zap.Int("status", resp.StatusCode),
			zap.String("url", c.url),
		)
		return nil, &core.AppError{
			Code:       core.ErrorCodeNetwork,
			Message:    "comments fetch failed with status " + resp.Status,
			Operation:  op,
			SafeToShow: true,
		}
	}

	var comments []core.Comment
	if err := json.NewDecoder(resp.Body).Decode(&comments); err != nil {
		return nil, core.NewNetworkError("comments response malformed", err, op)
	}
	// unknown fields are ignored by the decoder; missing required
	// fields fail here and turn the fetch into a failure
	for i := range comments {
		if err := c.validate.Struct(&comments[i]); err != nil {
			return nil, core.NewNetworkError("comments response invalid", err, op)
		}
	}
	return comments, nil
}
