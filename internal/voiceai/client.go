package voiceai

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// Client 语音AI平台（agent托管）API客户端
// teardown 只使用删除端点：DELETE agent、DELETE 号码绑定
type Client struct {
	httpClient *resty.Client
	apiKey     string
	logger     *zap.Logger
}

// NewClient 创建语音AI平台客户端
// 外部删除调用单次尝试、不重试（teardown对外部清理是尽力而为）
func NewClient(baseURL, apiKey string, logger *zap.Logger) *Client {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(15 * time.Second).
		SetHeader("Accept", "application/json")

	if apiKey != "" {
		client.SetAuthToken(apiKey)
	}

	return &Client{
		httpClient: client,
		apiKey:     apiKey,
		logger:     logger,
	}
}

// Configured 平台密钥是否已配置
// 未配置时调用方应整体跳过agent清理（告警降级，不是错误）
func (c *Client) Configured() bool {
	return c.apiKey != ""
}

// DeleteAgent 删除租户的会话agent
func (c *Client) DeleteAgent(ctx context.Context, agentID string) error {
	resp, err := c.httpClient.R().
		SetContext(ctx).
		Delete("/assistant/" + agentID)
	if err != nil {
		c.logger.Warn("Voice platform agent delete failed",
			zap.String("agent_id", agentID),
			zap.Error(err),
		)
		return fmt.Errorf("failed to delete agent %s: %w", agentID, err)
	}
	if resp.IsError() {
		c.logger.Warn("Voice platform agent delete returned error status",
			zap.String("agent_id", agentID),
			zap.Int("status_code", resp.StatusCode()),
		)
		return fmt.Errorf("delete agent %s: unexpected status %d", agentID, resp.StatusCode())
	}

	c.logger.Info("Deleted voice agent", zap.String("agent_id", agentID))
	return nil
}

// DeletePhoneNumberBinding 删除号码与agent的绑定
// 绑定引用agent，必须先于agent删除
func (c *Client) DeletePhoneNumberBinding(ctx context.Context, voiceNumberID string) error {
	resp, err := c.httpClient.R().
		SetContext(ctx).
		Delete("/phone-number/" + voiceNumberID)
	if err != nil {
		c.logger.Warn("Voice platform number binding delete failed",
			zap.String("voice_number_id", voiceNumberID),
			zap.Error(err),
		)
		return fmt.Errorf("failed to delete number binding %s: %w", voiceNumberID, err)
	}
	if resp.IsError() {
		c.logger.Warn("Voice platform number binding delete returned error status",
			zap.String("voice_number_id", voiceNumberID),
			zap.Int("status_code", resp.StatusCode()),
		)
		return fmt.Errorf("delete number binding %s: unexpected status %d", voiceNumberID, resp.StatusCode())
	}

	c.logger.Info("Deleted voice number binding", zap.String("voice_number_id", voiceNumberID))
	return nil
}
