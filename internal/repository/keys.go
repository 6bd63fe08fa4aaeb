package repository

// KV 键布局。底层存储只有前缀列举能力，所有二级索引都靠键前缀约定实现。
const (
	channelKeyPrefix     = "channel:"
	appKeyPrefix         = "app:"
	appKeyIndexPrefix    = "appkey:"
	recipientKeyPrefix   = "openid:"
	messageKeyPrefix     = "msg:"
	tokenStatusKeyPrefix = "token_status:"
	bindCodeKeyPrefix    = "bindcode:"

	listGlobalKey          = "msglist:global"
	listChannelKeyPrefix   = "msglist:channel:"
	listAppKeyPrefix       = "msglist:app:"
	listRecipientKeyPrefix = "msglist:openid:"
)

func channelKey(id string) string { return channelKeyPrefix + id }

func appKey(id string) string { return appKeyPrefix + id }

// appKeyIndex 路由键到应用 ID 的映射
func appKeyIndex(key string) string { return appKeyIndexPrefix + key }

// recipientKeyScope 某应用下所有绑定用户的键前缀
func recipientKeyScope(appID string) string { return recipientKeyPrefix + appID + ":" }

func recipientKey(appID, id string) string { return recipientKeyScope(appID) + id }

func messageKey(id string) string { return messageKeyPrefix + id }

func tokenStatusKey(channelID string) string { return tokenStatusKeyPrefix + channelID }

func bindCodeKey(code string) string { return bindCodeKeyPrefix + code }

func listChannelKey(channelID string) string { return listChannelKeyPrefix + channelID }

func listAppKey(appID string) string { return listAppKeyPrefix + appID }

func listRecipientKey(openID string) string { return listRecipientKeyPrefix + openID }
