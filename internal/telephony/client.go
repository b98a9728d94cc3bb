package telephony

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"answerafter-admin/internal/domain"
)

// Credentials 运营商API凭证（HTTP Basic：账号ID + auth token）
type Credentials struct {
	AccountSID string
	AuthToken  string
}

// Client 电话运营商API客户端
//
// teardown 只做webhook重置：号码的语音/短信入站URL改写为占位端点，
// 来电不再路由到已删除的agent。号码本身不注销（保留待人工复用，
// 注销是计费决策，不归数据层管）。
type Client struct {
	httpClient *resty.Client
	master     Credentials
	neutralURL string
	logger     *zap.Logger
}

// NewClient 创建运营商客户端
// master 为平台主账号凭证；neutralWebhookURL 为重置后的占位webhook
func NewClient(baseURL string, master Credentials, neutralWebhookURL string, logger *zap.Logger) *Client {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(15 * time.Second).
		SetHeader("Accept", "application/json")

	return &Client{
		httpClient: client,
		master:     master,
		neutralURL: neutralWebhookURL,
		logger:     logger,
	}
}

// ResolveCredentials 凭证解析：租户子账号优先，缺省回落到平台主账号
// 两者都不可用时返回 ok=false，调用方跳过webhook重置（告警降级）
func (c *Client) ResolveCredentials(tenant *domain.Tenant) (Credentials, bool) {
	if tenant != nil && tenant.TelephonySubaccountSID != "" && tenant.TelephonySubaccountToken != "" {
		return Credentials{
			AccountSID: tenant.TelephonySubaccountSID,
			AuthToken:  tenant.TelephonySubaccountToken,
		}, true
	}
	if c.master.AccountSID != "" && c.master.AuthToken != "" {
		return c.master, true
	}
	return Credentials{}, false
}

// ResetWebhooks 将号码的入站webhook改写为占位端点
func (c *Client) ResetWebhooks(ctx context.Context, creds Credentials, numberSID string) error {
	path := fmt.Sprintf("/2010-04-01/Accounts/%s/IncomingPhoneNumbers/%s.json", creds.AccountSID, numberSID)

	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetBasicAuth(creds.AccountSID, creds.AuthToken).
		SetFormData(map[string]string{
			"VoiceUrl":    c.neutralURL,
			"VoiceMethod": "POST",
			"SmsUrl":      c.neutralURL,
			"SmsMethod":   "POST",
		}).
		Post(path)
	if err != nil {
		c.logger.Warn("Telephony webhook reset failed",
			zap.String("number_sid", numberSID),
			zap.Error(err),
		)
		return fmt.Errorf("failed to reset webhooks for %s: %w", numberSID, err)
	}
	if resp.IsError() {
		c.logger.Warn("Telephony webhook reset returned error status",
			zap.String("number_sid", numberSID),
			zap.Int("status_code", resp.StatusCode()),
		)
		return fmt.Errorf("reset webhooks for %s: unexpected status %d", numberSID, resp.StatusCode())
	}

	c.logger.Info("Reset telephony webhooks", zap.String("number_sid", numberSID))
	return nil
}
