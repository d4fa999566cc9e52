package common

const (
	KEY_STOCK_HISTORY  = "stock_history:%s:%s"
	KEY_RISK_FREE_RATE = "risk_free_rate"
	KEY_OPTION_CHAIN   = "option_chain:%s:%d"
)
