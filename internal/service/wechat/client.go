package wechat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

const (
	// DefaultBaseURL 微信公众号接口地址
	DefaultBaseURL = "https://api.weixin.qq.com"

	defaultTimeout = 10 * time.Second
)

// Config 客户端配置
type Config struct {
	// BaseURL 接口地址，留空使用官方地址，测试时指向本地桩服务
	BaseURL string
	Timeout time.Duration
}

// Client 微信公众号接口客户端，自身无状态，令牌由调用方传入
type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(cfg Config) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// TokenResult 令牌签发结果
type TokenResult struct {
	AccessToken string
	// ExpiresIn 供应商声明的有效期，单位秒
	ExpiresIn int64
}

// FetchToken 调用令牌签发接口
// 供应商返回 errcode 时错误为 *APIError，网络层失败则为普通错误
func (c *Client) FetchToken(ctx context.Context, appID, appSecret string) (TokenResult, error) {
	values := url.Values{}
	values.Set("grant_type", "client_credential")
	values.Set("appid", appID)
	values.Set("secret", appSecret)
	endpoint := c.baseURL + "/cgi-bin/token?" + values.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return TokenResult{}, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return TokenResult{}, fmt.Errorf("请求令牌接口失败: %w", err)
	}
	defer resp.Body.Close()

	var payload struct {
		ErrCode     int64  `json:"errcode"`
		ErrMsg      string `json:"errmsg"`
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return TokenResult{}, fmt.Errorf("解析令牌响应失败: %w", err)
	}
	if payload.ErrCode != 0 {
		return TokenResult{}, &APIError{Code: payload.ErrCode, Msg: payload.ErrMsg}
	}
	return TokenResult{AccessToken: payload.AccessToken, ExpiresIn: payload.ExpiresIn}, nil
}

// sendResponse 消息发送接口的统一响应
type sendResponse struct {
	ErrCode int64  `json:"errcode"`
	ErrMsg  string `json:"errmsg"`
	MsgID   int64  `json:"msgid"`
}

// SendCustomMessage 发送客服文本消息，成功时返回消息 ID
func (c *Client) SendCustomMessage(ctx context.Context, accessToken, openID, content string) (string, error) {
	body := map[string]any{
		"touser":  openID,
		"msgtype": "text",
		"text": map[string]string{
			"content": content,
		},
	}
	return c.postMessage(ctx, "/cgi-bin/message/custom/send", accessToken, body)
}

// TemplateData 模板消息的字段集合
type TemplateData map[string]TemplateValue

// TemplateValue 模板消息的单个字段
type TemplateValue struct {
	Value string `json:"value"`
	Color string `json:"color,omitempty"`
}

// SendTemplateMessage 发送模板消息，成功时返回消息 ID
func (c *Client) SendTemplateMessage(ctx context.Context, accessToken, openID, templateID string, data TemplateData) (string, error) {
	body := map[string]any{
		"touser":      openID,
		"template_id": templateID,
		"data":        data,
	}
	return c.postMessage(ctx, "/cgi-bin/message/template/send", accessToken, body)
}

func (c *Client) postMessage(ctx context.Context, path, accessToken string, body any) (string, error) {
	endpoint := c.baseURL + path + "?access_token=" + url.QueryEscape(accessToken)

	payload, err := json.Marshal(body)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("请求消息接口失败: %w", err)
	}
	defer resp.Body.Close()

	var result sendResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("解析消息响应失败: %w", err)
	}
	if result.ErrCode != 0 {
		return "", &APIError{Code: result.ErrCode, Msg: result.ErrMsg}
	}
	return strconv.FormatInt(result.MsgID, 10), nil
}
