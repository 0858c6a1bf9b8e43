package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/dunelink/dunelink/internal/handlers"
	"github.com/dunelink/dunelink/pkg/requestid"
)

// BridgeClient talks to the dunelink HTTP API.
type BridgeClient struct {
	serverUrl  string
	httpClient *http.Client
}

// ErrServer is returned when the bridge answers with a non-2xx status. The decoded
// body is kept because query routes still carry the result text on failure.
type ErrServer struct {
	StatusCode int
	Reply      handlers.ResultReply
}

func (e *ErrServer) Error() string {
	if e.Reply.Error != "" {
		return fmt.Sprintf("server returned %d (%s): %s", e.StatusCode, e.Reply.Error, e.Reply.Result)
	}
	if e.Reply.Result != "" {
		return fmt.Sprintf("server returned %d: %s", e.StatusCode, e.Reply.Result)
	}
	return fmt.Sprintf("server returned %d", e.StatusCode)
}

func NewBridgeClient(serverUrl string, timeout time.Duration) *BridgeClient {
	return &BridgeClient{
		serverUrl:  serverUrl,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (c *BridgeClient) Latest(ctx context.Context, queryID int64) (*handlers.ResultReply, error) {
	var reply handlers.ResultReply
	path := fmt.Sprintf("/dune/query/%d/latest", queryID)
	if err := c.do(ctx, http.MethodGet, path, &reply); err != nil {
		return nil, err
	}
	return &reply, nil
}

func (c *BridgeClient) Execute(ctx context.Context, queryID int64) (*handlers.ResultReply, error) {
	var reply handlers.ResultReply
	path := fmt.Sprintf("/dune/query/%d/execute", queryID)
	if err := c.do(ctx, http.MethodPost, path, &reply); err != nil {
		return nil, err
	}
	return &reply, nil
}

func (c *BridgeClient) Executions(ctx context.Context, queryID int64, limit int) (*handlers.ExecutionsReply, error) {
	var reply handlers.ExecutionsReply
	path := fmt.Sprintf("/dune/query/%d/executions", queryID)
	if limit > 0 {
		path += "?" + url.Values{"limit": []string{strconv.Itoa(limit)}}.Encode()
	}
	if err := c.do(ctx, http.MethodGet, path, &reply); err != nil {
		return nil, err
	}
	return &reply, nil
}

func (c *BridgeClient) do(ctx context.Context, method, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.serverUrl+path, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	requestid.Propagate(ctx, req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("calling %s: %w", path, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		serverErr := &ErrServer{StatusCode: resp.StatusCode}
		_ = json.Unmarshal(body, &serverErr.Reply)
		return serverErr
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}
