// Package idgen 基于雪花算法的全局 ID 生成器
package idgen

import (
	"sync"

	"github.com/bwmarrin/snowflake"
)

var (
	once sync.Once
	node *snowflake.Node
)

// Init 使用指定节点号初始化生成器，重复调用只生效一次
func Init(nodeID int64) error {
	var err error
	once.Do(func() {
		node, err = snowflake.NewNode(nodeID)
	})
	return err
}

// GenID 生成一个全局唯一的雪花 ID
// 未显式初始化时退化为节点 1
func GenID() int64 {
	if node == nil {
		_ = Init(1)
	}
	return node.Generate().Int64()
}
