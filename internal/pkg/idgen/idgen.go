package idgen

import (
	"strconv"
	"strings"
	"time"

	"github.com/gofrs/uuid"
	"github.com/sony/sonyflake"
)

// appKeyPrefix 对外路由键前缀
const appKeyPrefix = "APK_"

// Generator 生成推送 ID、实体 ID 以及对外路由键
type Generator struct {
	sf *sonyflake.Sonyflake
}

func NewGenerator() *Generator {
	return &Generator{
		sf: sonyflake.NewSonyflake(sonyflake.Settings{}),
	}
}

// NextID 生成一个时间有序的十进制字符串 ID。
// 推送流程要求无条件拿到 ID，雪花算法失败时退化为纳秒时间戳。
func (g *Generator) NextID() string {
	if g.sf != nil {
		if id, err := g.sf.NextID(); err == nil {
			return strconv.FormatUint(id, 10)
		}
	}
	return strconv.FormatInt(time.Now().UnixNano(), 10)
}

// AppKey 生成应用的对外路由键
func (g *Generator) AppKey() string {
	u, err := uuid.NewV4()
	if err != nil {
		return appKeyPrefix + g.NextID()
	}
	return appKeyPrefix + strings.ReplaceAll(u.String(), "-", "")
}

// BindCode 生成短期有效的绑定码
func (g *Generator) BindCode() string {
	u, err := uuid.NewV4()
	if err != nil {
		return strings.ToUpper(g.NextID())
	}
	code := strings.ToUpper(strings.ReplaceAll(u.String(), "-", ""))
	return code[:8]
}
