package identity

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// Client 认证服务管理端客户端（用户身份删除）
//
// teardown 里按用户逐个调用：profile行已先删除，
// 单个身份删除失败只记告警（无profile的残留身份不可发现、可重跑清理）。
type Client struct {
	httpClient *resty.Client
	serviceKey string
	logger     *zap.Logger
}

// NewClient 创建认证服务客户端
func NewClient(baseURL, serviceKey string, logger *zap.Logger) *Client {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(15 * time.Second).
		SetHeader("Accept", "application/json")

	if serviceKey != "" {
		client.SetAuthToken(serviceKey)
	}

	return &Client{
		httpClient: client,
		serviceKey: serviceKey,
		logger:     logger,
	}
}

// Configured 管理端凭证是否已配置
func (c *Client) Configured() bool {
	return c.serviceKey != ""
}

// DeleteUser 删除认证服务侧的用户身份
func (c *Client) DeleteUser(ctx context.Context, authUserID string) error {
	resp, err := c.httpClient.R().
		SetContext(ctx).
		Delete("/admin/users/" + authUserID)
	if err != nil {
		c.logger.Warn("Auth provider user delete failed",
			zap.String("auth_user_id", authUserID),
			zap.Error(err),
		)
		return fmt.Errorf("failed to delete auth user %s: %w", authUserID, err)
	}
	if resp.IsError() {
		c.logger.Warn("Auth provider user delete returned error status",
			zap.String("auth_user_id", authUserID),
			zap.Int("status_code", resp.StatusCode()),
		)
		return fmt.Errorf("delete auth user %s: unexpected status %d", authUserID, resp.StatusCode())
	}

	c.logger.Info("Deleted auth user", zap.String("auth_user_id", authUserID))
	return nil
}
