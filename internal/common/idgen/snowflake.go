// Package idgen 提供基于雪花算法的业务单号生成
package idgen

import (
	"errors"
	"strconv"
	"sync"

	"github.com/bwmarrin/snowflake"
)

var (
	node   *snowflake.Node
	nodeMu sync.RWMutex

	errInvalidMachineID    = errors.New("invalid snowflake machine id")
	errInvalidDataCenterID = errors.New("invalid snowflake data center id")
)

// Init 初始化节点，machineID 与 dataCenterID 均为 0~31
func Init(machineID, dataCenterID int64) error {
	if machineID < 0 || machineID > 31 {
		return errInvalidMachineID
	}
	if dataCenterID < 0 || dataCenterID > 31 {
		return errInvalidDataCenterID
	}

	n, err := snowflake.NewNode((dataCenterID << 5) | machineID)
	if err != nil {
		return err
	}

	nodeMu.Lock()
	node = n
	nodeMu.Unlock()
	return nil
}

// NextID 生成下一个 ID；未初始化时以节点 0 懒加载，便于测试和单实例部署
func NextID() int64 {
	nodeMu.RLock()
	n := node
	nodeMu.RUnlock()

	if n == nil {
		nodeMu.Lock()
		if node == nil {
			node, _ = snowflake.NewNode(0)
		}
		n = node
		nodeMu.Unlock()
	}
	return n.Generate().Int64()
}

// NextNo 生成字符串形式的业务单号（提现单号，同时作为打款幂等键）
func NextNo() string {
	return strconv.FormatInt(NextID(), 10)
}
