package entity

// Msg 状态接口的统一返回结构
type Msg struct {
	Success bool   `json:"success"`
	Msg     string `json:"msg"`
	Obj     any    `json:"obj"`
}

// AccountEntry 是 /api/accounts 中的一行，不带 vmess 链接
type AccountEntry struct {
	AccountID  string `json:"account_id"`
	ClientID   string `json:"client_id"`
	CreatedAt  string `json:"created_at"`
	ExpiryDate string `json:"expiry_date"`
	DaysLeft   int    `json:"days_left"`
	Expired    bool   `json:"expired"`
}

type ConnectionsReport struct {
	Kind    string `json:"kind"`
	Count   int    `json:"count"`
	Sockets int    `json:"sockets"`
	Items   any    `json:"items"`
}
