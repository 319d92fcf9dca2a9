package infra

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/eliteGoblin/scenehook/internal/domain"
)

// obs-websocket v5 opcodes.
const (
	obsOpHello           = 0
	obsOpIdentify        = 1
	obsOpIdentified      = 2
	obsOpRequest         = 6
	obsOpRequestResponse = 7

	obsRPCVersion = 1
)

// obsMessage is the outer obs-websocket frame.
type obsMessage struct {
	Op int             `json:"op"`
	D  json.RawMessage `json:"d"`
}

type obsHello struct {
	ObsWebSocketVersion string `json:"obsWebSocketVersion"`
	RPCVersion          int    `json:"rpcVersion"`
	Authentication      *struct {
		Challenge string `json:"challenge"`
		Salt      string `json:"salt"`
	} `json:"authentication,omitempty"`
}

type obsIdentify struct {
	RPCVersion         int    `json:"rpcVersion"`
	Authentication     string `json:"authentication,omitempty"`
	EventSubscriptions int    `json:"eventSubscriptions"`
}

type obsRequest struct {
	RequestType string `json:"requestType"`
	RequestID   string `json:"requestId"`
	RequestData any    `json:"requestData,omitempty"`
}

type obsResponse struct {
	RequestType   string `json:"requestType"`
	RequestID     string `json:"requestId"`
	RequestStatus struct {
		Result  bool   `json:"result"`
		Code    int    `json:"code"`
		Comment string `json:"comment"`
	} `json:"requestStatus"`
	ResponseData json.RawMessage `json:"responseData"`
}

// OBSClient implements domain.SceneSource over obs-websocket v5.
// It connects lazily, reconnects after any transport error and keeps one
// request in flight at a time.
type OBSClient struct {
	url      string
	password string
	timeout  time.Duration
	logger   *zap.Logger

	mu   sync.Mutex
	conn *websocket.Conn
}

// NewOBSClient creates a client for url ("ws://host:4455").
func NewOBSClient(url, password string, timeout time.Duration, logger *zap.Logger) *OBSClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &OBSClient{url: url, password: password, timeout: timeout, logger: logger}
}

// Close drops the connection, if any.
func (c *OBSClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close(websocket.StatusNormalClosure, "closing")
	c.conn = nil
	return err
}

// obsAuth computes base64(sha256(base64(sha256(password+salt)) + challenge)).
func obsAuth(password, salt, challenge string) string {
	secret := sha256.Sum256([]byte(password + salt))
	secretB64 := base64.StdEncoding.EncodeToString(secret[:])
	auth := sha256.Sum256([]byte(secretB64 + challenge))
	return base64.StdEncoding.EncodeToString(auth[:])
}

// connectLocked dials and completes the Hello/Identify handshake. Caller holds mu.
func (c *OBSClient) connectLocked(ctx context.Context) error {
	conn, _, err := websocket.Dial(ctx, c.url, nil)
	if err != nil {
		return fmt.Errorf("dial obs: %w", err)
	}
	conn.SetReadLimit(4 << 20)

	var hello obsMessage
	if err := wsjson.Read(ctx, conn, &hello); err != nil {
		conn.Close(websocket.StatusProtocolError, "no hello")
		return fmt.Errorf("read hello: %w", err)
	}
	if hello.Op != obsOpHello {
		conn.Close(websocket.StatusProtocolError, "unexpected op")
		return fmt.Errorf("expected hello, got op %d", hello.Op)
	}
	var h obsHello
	if err := json.Unmarshal(hello.D, &h); err != nil {
		conn.Close(websocket.StatusProtocolError, "bad hello")
		return fmt.Errorf("decode hello: %w", err)
	}

	identify := obsIdentify{RPCVersion: obsRPCVersion}
	if h.Authentication != nil {
		if c.password == "" {
			conn.Close(websocket.StatusPolicyViolation, "auth required")
			return errors.New("obs requires a password")
		}
		identify.Authentication = obsAuth(c.password, h.Authentication.Salt, h.Authentication.Challenge)
	}
	if err := c.writeLocked(ctx, conn, obsOpIdentify, identify); err != nil {
		conn.Close(websocket.StatusInternalError, "identify failed")
		return err
	}

	var identified obsMessage
	if err := wsjson.Read(ctx, conn, &identified); err != nil {
		conn.Close(websocket.StatusProtocolError, "no identified")
		return fmt.Errorf("read identified: %w", err)
	}
	if identified.Op != obsOpIdentified {
		conn.Close(websocket.StatusProtocolError, "unexpected op")
		return fmt.Errorf("expected identified, got op %d", identified.Op)
	}

	c.conn = conn
	c.logger.Info("connected to OBS", zap.String("url", c.url), zap.String("obs_ws_version", h.ObsWebSocketVersion))
	return nil
}

func (c *OBSClient) writeLocked(ctx context.Context, conn *websocket.Conn, op int, d any) error {
	raw, err := json.Marshal(d)
	if err != nil {
		return err
	}
	return wsjson.Write(ctx, conn, obsMessage{Op: op, D: raw})
}

// call sends one request and decodes responseData into out (may be nil).
func (c *OBSClient) call(ctx context.Context, requestType string, data any, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		if err := c.connectLocked(ctx); err != nil {
			return err
		}
	}

	id := uuid.NewString()
	req := obsRequest{RequestType: requestType, RequestID: id, RequestData: data}
	if err := c.writeLocked(ctx, c.conn, obsOpRequest, req); err != nil {
		c.dropLocked()
		return fmt.Errorf("%s: %w", requestType, err)
	}

	for {
		var msg obsMessage
		if err := wsjson.Read(ctx, c.conn, &msg); err != nil {
			c.dropLocked()
			return fmt.Errorf("%s: %w", requestType, err)
		}
		if msg.Op != obsOpRequestResponse {
			continue
		}
		var resp obsResponse
		if err := json.Unmarshal(msg.D, &resp); err != nil {
			return fmt.Errorf("%s: decode response: %w", requestType, err)
		}
		if resp.RequestID != id {
			continue
		}
		if !resp.RequestStatus.Result {
			return fmt.Errorf("%s failed (code %d): %s", requestType, resp.RequestStatus.Code, resp.RequestStatus.Comment)
		}
		if out == nil || len(resp.ResponseData) == 0 {
			return nil
		}
		return json.Unmarshal(resp.ResponseData, out)
	}
}

func (c *OBSClient) dropLocked() {
	if c.conn != nil {
		c.conn.Close(websocket.StatusGoingAway, "reconnecting")
		c.conn = nil
	}
}

// CurrentScene returns the active program scene.
func (c *OBSClient) CurrentScene(ctx context.Context) (*domain.Scene, error) {
	var resp struct {
		SceneName               string `json:"sceneName"`
		SceneUUID               string `json:"sceneUuid"`
		CurrentProgramSceneName string `json:"currentProgramSceneName"`
		CurrentProgramSceneUUID string `json:"currentProgramSceneUuid"`
	}
	if err := c.call(ctx, "GetCurrentProgramScene", nil, &resp); err != nil {
		return nil, err
	}
	scene := &domain.Scene{ID: resp.SceneUUID, Name: resp.SceneName}
	if scene.ID == "" {
		scene.ID = resp.CurrentProgramSceneUUID
	}
	if scene.Name == "" {
		scene.Name = resp.CurrentProgramSceneName
	}
	if scene.ID == "" && scene.Name == "" {
		return nil, domain.ErrNoScene
	}
	return scene, nil
}

type obsSceneItem struct {
	SourceName string `json:"sourceName"`
	SourceUUID string `json:"sourceUuid"`
}

// windowSource returns the first scene item with a "window" setting and that value.
func (c *OBSClient) windowSource(ctx context.Context, sceneID string) (*obsSceneItem, string, error) {
	var items struct {
		SceneItems []obsSceneItem `json:"sceneItems"`
	}
	if err := c.call(ctx, "GetSceneItemList", map[string]string{"sceneUuid": sceneID}, &items); err != nil {
		return nil, "", err
	}
	for i := range items.SceneItems {
		item := &items.SceneItems[i]
		var settings struct {
			InputSettings struct {
				Window string `json:"window"`
			} `json:"inputSettings"`
		}
		if err := c.call(ctx, "GetInputSettings", map[string]string{"inputUuid": item.SourceUUID}, &settings); err != nil {
			c.logger.Debug("input settings unavailable", zap.String("source", item.SourceName), zap.Error(err))
			continue
		}
		if settings.InputSettings.Window != "" {
			return item, settings.InputSettings.Window, nil
		}
	}
	return nil, "", nil
}

// ExecutableName returns the executable bound to the scene's window capture ("" if none).
func (c *OBSClient) ExecutableName(ctx context.Context, sceneID string) (string, error) {
	_, window, err := c.windowSource(ctx, sceneID)
	if err != nil || window == "" {
		return "", err
	}
	return ParseWindowValue(window).Executable, nil
}

// WindowTitle returns the live title of the scene's captured window, falling back
// to the title stored in the source settings.
func (c *OBSClient) WindowTitle(ctx context.Context, sceneID string) (string, error) {
	item, window, err := c.windowSource(ctx, sceneID)
	if err != nil || window == "" {
		return "", err
	}

	var props struct {
		PropertyItems []struct {
			ItemName  string `json:"itemName"`
			ItemValue string `json:"itemValue"`
		} `json:"propertyItems"`
	}
	req := map[string]string{"inputName": item.SourceName, "propertyName": "window"}
	if err := c.call(ctx, "GetInputPropertiesListPropertyItems", req, &props); err != nil {
		c.logger.Warn("could not fetch live window title", zap.String("source", item.SourceName), zap.Error(err))
	} else {
		for _, p := range props.PropertyItems {
			if p.ItemValue != window {
				continue
			}
			if _, title, ok := strings.Cut(p.ItemName, ":"); ok {
				if title = strings.TrimSpace(title); title != "" {
					return title, nil
				}
			}
		}
	}
	return ParseWindowValue(window).Title, nil
}

// WindowValue is a parsed OBS window capture setting ("Title:Class:exe").
type WindowValue struct {
	Title      string
	Class      string
	Executable string
}

// ParseWindowValue splits an OBS window setting. OBS escapes ':' inside fields as "#3A".
func ParseWindowValue(value string) WindowValue {
	parts := strings.Split(value, ":")
	unescape := func(s string) string {
		return strings.TrimSpace(strings.ReplaceAll(s, "#3A", ":"))
	}
	var wv WindowValue
	wv.Title = unescape(parts[0])
	if len(parts) > 2 {
		wv.Class = unescape(parts[1])
	}
	if len(parts) > 1 {
		wv.Executable = unescape(parts[len(parts)-1])
	}
	return wv
}

// Ensure OBSClient implements domain.SceneSource.
var _ domain.SceneSource = (*OBSClient)(nil)
