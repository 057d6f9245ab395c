package relay

// irn methods.
const (
	MethodPublish        = "irn_publish"
	MethodSubscribe      = "irn_subscribe"
	MethodUnsubscribe    = "irn_unsubscribe"
	MethodBatchSubscribe = "irn_batchSubscribe"
	MethodSubscription   = "irn_subscription"
)

// MaxBatchTopics is the largest topic list sent in one irn_batchSubscribe.
const MaxBatchTopics = 500

type PublishParams struct {
	Topic   string `json:"topic"`
	Message string `json:"message"`
	TTL     int    `json:"ttl"`
	Prompt  bool   `json:"prompt,omitempty"`
	Tag     int    `json:"tag"`
}

type SubscribeParams struct {
	Topic string `json:"topic"`
}

type UnsubscribeParams struct {
	Topic string `json:"topic"`
	ID    string `json:"id"`
}

type BatchSubscribeParams struct {
	Topics []string `json:"topics"`
}

// SubscriptionParams is the payload of a relay push.
type SubscriptionParams struct {
	ID   string           `json:"id"`
	Data SubscriptionData `json:"data"`
}

type SubscriptionData struct {
	Topic       string `json:"topic"`
	Message     string `json:"message"`
	PublishedAt int64  `json:"publishedAt"` // unix millis
	Tag         int    `json:"tag"`
	Attestation string `json:"attestation,omitempty"`
}
