// Package wechatpay 提供微信支付商家转账（提现打款）客户端
package wechatpay

import (
	"bytes"
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"encoding/pem"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"time"
)

// DefaultBaseURL 微信支付 API 地址
const DefaultBaseURL = "https://api.mch.weixin.qq.com"

// Config 微信支付配置
type Config struct {
	AppID          string `mapstructure:"app_id"`
	MchID          string `mapstructure:"mch_id"`
	APIv3Key       string `mapstructure:"api_v3_key"`
	SerialNo       string `mapstructure:"serial_no"`
	PrivateKeyPath string `mapstructure:"private_key_path"`
	BaseURL        string `mapstructure:"base_url"`
	Timeout        time.Duration
}

// 打款结果状态
const (
	TransferStatusSuccess    = "SUCCESS"
	TransferStatusProcessing = "PROCESSING"
	TransferStatusFail       = "FAIL"
	TransferStatusNotFound   = "NOT_FOUND"
)

// TransferRequest 转账到零钱请求，OutBatchNo 为商户侧幂等键
type TransferRequest struct {
	OutBatchNo string
	OpenID     string
	Amount     int64 // 单位：分
	Remark     string
}

// TransferResult 转账结果
type TransferResult struct {
	OutBatchNo string
	BatchID    string
	Status     string
	FailReason string
}

// Payer 提现打款接口
type Payer interface {
	// TransferToBalance 发起转账。同一 OutBatchNo 重复提交不会重复打款。
	TransferToBalance(ctx context.Context, req *TransferRequest) (*TransferResult, error)
	// QueryTransfer 按商户批次号查询转账结果
	QueryTransfer(ctx context.Context, outBatchNo string) (*TransferResult, error)
}

// Client 微信支付 APIv3 客户端
type Client struct {
	config     *Config
	privateKey *rsa.PrivateKey
	httpClient *http.Client
	baseURL    string
}

// NewClient 创建微信支付客户端
func NewClient(config *Config) (*Client, error) {
	privateKey, err := loadPrivateKey(config.PrivateKeyPath)
	if err != nil {
		return nil, err
	}

	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	baseURL := config.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	return &Client{
		config:     config,
		privateKey: privateKey,
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
	}, nil
}

func loadPrivateKey(path string) (*rsa.PrivateKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read private key error: %w", err)
	}
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, errors.New("invalid private key pem")
	}

	key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parse private key error: %w", err)
	}
	rsaKey, ok := key.(*rsa.PrivateKey)
	if !ok {
		return nil, errors.New("private key is not RSA")
	}
	return rsaKey, nil
}

type transferDetail struct {
	OutDetailNo    string `json:"out_detail_no"`
	TransferAmount int64  `json:"transfer_amount"`
	TransferRemark string `json:"transfer_remark"`
	OpenID         string `json:"openid"`
}

type transferBatchRequest struct {
	AppID              string           `json:"appid"`
	OutBatchNo         string           `json:"out_batch_no"`
	BatchName          string           `json:"batch_name"`
	BatchRemark        string           `json:"batch_remark"`
	TotalAmount        int64            `json:"total_amount"`
	TotalNum           int              `json:"total_num"`
	TransferDetailList []transferDetail `json:"transfer_detail_list"`
}

type transferBatchResponse struct {
	OutBatchNo  string `json:"out_batch_no"`
	BatchID     string `json:"batch_id"`
	BatchStatus string `json:"batch_status"`
}

type queryBatchResponse struct {
	TransferBatch struct {
		OutBatchNo  string `json:"out_batch_no"`
		BatchID     string `json:"batch_id"`
		BatchStatus string `json:"batch_status"`
		CloseReason string `json:"close_reason"`
		SuccessNum  int    `json:"success_num"`
		FailNum     int    `json:"fail_num"`
	} `json:"transfer_batch"`
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// TransferToBalance 发起商家转账到零钱
func (c *Client) TransferToBalance(ctx context.Context, req *TransferRequest) (*TransferResult, error) {
	body := transferBatchRequest{
		AppID:       c.config.AppID,
		OutBatchNo:  req.OutBatchNo,
		BatchName:   "佣金提现",
		BatchRemark: req.Remark,
		TotalAmount: req.Amount,
		TotalNum:    1,
		TransferDetailList: []transferDetail{{
			OutDetailNo:    req.OutBatchNo,
			TransferAmount: req.Amount,
			TransferRemark: req.Remark,
			OpenID:         req.OpenID,
		}},
	}

	var resp transferBatchResponse
	status, apiErr, err := c.do(ctx, http.MethodPost, "/v3/transfer/batches", body, &resp)
	if err != nil {
		return nil, err
	}
	if apiErr != nil {
		// 批次号已存在说明此前已受理，以查询结果为准
		if apiErr.Code == "ALREADY_EXISTS" {
			return c.QueryTransfer(ctx, req.OutBatchNo)
		}
		if status >= http.StatusInternalServerError {
			return nil, fmt.Errorf("wechatpay transfer error: %s %s", apiErr.Code, apiErr.Message)
		}
		return &TransferResult{
			OutBatchNo: req.OutBatchNo,
			Status:     TransferStatusFail,
			FailReason: apiErr.Code + ": " + apiErr.Message,
		}, nil
	}

	return &TransferResult{
		OutBatchNo: resp.OutBatchNo,
		BatchID:    resp.BatchID,
		Status:     mapBatchStatus(resp.BatchStatus, 0, 0),
	}, nil
}

// QueryTransfer 按商户批次号查询
func (c *Client) QueryTransfer(ctx context.Context, outBatchNo string) (*TransferResult, error) {
	var resp queryBatchResponse
	path := "/v3/transfer/batches/out-batch-no/" + outBatchNo + "?need_query_detail=false"
	status, apiErr, err := c.do(ctx, http.MethodGet, path, nil, &resp)
	if err != nil {
		return nil, err
	}
	if apiErr != nil {
		if status == http.StatusNotFound || apiErr.Code == "NOT_FOUND" {
			return &TransferResult{OutBatchNo: outBatchNo, Status: TransferStatusNotFound}, nil
		}
		return nil, fmt.Errorf("wechatpay query error: %s %s", apiErr.Code, apiErr.Message)
	}

	batch := resp.TransferBatch
	result := &TransferResult{
		OutBatchNo: outBatchNo,
		BatchID:    batch.BatchID,
		Status:     mapBatchStatus(batch.BatchStatus, batch.SuccessNum, batch.FailNum),
	}
	if result.Status == TransferStatusFail {
		result.FailReason = batch.CloseReason
		if result.FailReason == "" {
			result.FailReason = "转账失败"
		}
	}
	return result, nil
}

// mapBatchStatus 批次状态映射为单笔打款结果
func mapBatchStatus(batchStatus string, successNum, failNum int) string {
	switch batchStatus {
	case "FINISHED":
		if successNum > 0 && failNum == 0 {
			return TransferStatusSuccess
		}
		return TransferStatusFail
	case "CLOSED":
		return TransferStatusFail
	default:
		return TransferStatusProcessing
	}
}

// do 发送签名请求。HTTP 层失败返回 err；业务错误返回 apiError
func (c *Client) do(ctx context.Context, method, path string, in, out interface{}) (int, *apiError, error) {
	var payload []byte
	if in != nil {
		var err error
		if payload, err = json.Marshal(in); err != nil {
			return 0, nil, fmt.Errorf("marshal request error: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return 0, nil, err
	}
	authorization, err := c.authorization(method, path, payload)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Authorization", authorization)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Wechatpay-Serial", c.config.SerialNo)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("wechatpay request error: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("read response error: %w", err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		var apiErr apiError
		if err := json.Unmarshal(data, &apiErr); err != nil || apiErr.Code == "" {
			apiErr = apiError{Code: strconv.Itoa(resp.StatusCode), Message: string(data)}
		}
		return resp.StatusCode, &apiErr, nil
	}

	if out != nil && len(data) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return resp.StatusCode, nil, fmt.Errorf("parse response error: %w", err)
		}
	}
	return resp.StatusCode, nil, nil
}

// authorization 生成 WECHATPAY2-SHA256-RSA2048 认证头
func (c *Client) authorization(method, path string, body []byte) (string, error) {
	nonce := generateNonceStr()
	timestamp := strconv.FormatInt(time.Now().Unix(), 10)
	message := method + "\n" + path + "\n" + timestamp + "\n" + nonce + "\n" + string(body) + "\n"

	hashed := sha256.Sum256([]byte(message))
	signature, err := rsa.SignPKCS1v15(rand.Reader, c.privateKey, crypto.SHA256, hashed[:])
	if err != nil {
		return "", fmt.Errorf("sign request error: %w", err)
	}

	return fmt.Sprintf(`WECHATPAY2-SHA256-RSA2048 mchid="%s",nonce_str="%s",timestamp="%s",serial_no="%s",signature="%s"`,
		c.config.MchID, nonce, timestamp, c.config.SerialNo, base64.StdEncoding.EncodeToString(signature)), nil
}

// generateNonceStr 生成随机字符串
func generateNonceStr() string {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
