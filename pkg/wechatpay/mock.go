package wechatpay

import (
	"context"
	"sync"
)

// MockClient 本地联调用的打款实现，同一批次号只受理一次
type MockClient struct {
	transfers sync.Map // outBatchNo -> *TransferResult
}

// NewMockClient 创建模拟打款客户端
func NewMockClient() *MockClient {
	return &MockClient{}
}

// TransferToBalance 直接返回成功
func (m *MockClient) TransferToBalance(_ context.Context, req *TransferRequest) (*TransferResult, error) {
	result := &TransferResult{
		OutBatchNo: req.OutBatchNo,
		BatchID:    "mock_" + req.OutBatchNo,
		Status:     TransferStatusSuccess,
	}
	actual, _ := m.transfers.LoadOrStore(req.OutBatchNo, result)
	return actual.(*TransferResult), nil
}

// QueryTransfer 查询已受理的批次
func (m *MockClient) QueryTransfer(_ context.Context, outBatchNo string) (*TransferResult, error) {
	if v, ok := m.transfers.Load(outBatchNo); ok {
		return v.(*TransferResult), nil
	}
	return &TransferResult{OutBatchNo: outBatchNo, Status: TransferStatusNotFound}, nil
}
