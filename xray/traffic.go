package xray

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	userStatNameRe = regexp.MustCompile(`user>>>(.+?)>>>(?:traffic>>>)?(uplink|downlink)`)
	statValueRe    = regexp.MustCompile(`"?value"?\s*:\s*"?(\d+)`)
)

// UserTraffic 一个账户的上下行累计字节数
type UserTraffic struct {
	User     string
	Uplink   int64
	Downlink int64
}

func (u UserTraffic) Total() int64 {
	return u.Uplink + u.Downlink
}

// ParseUserStats 解析 statsquery 输出中的 user>>>label>>>direction 记录，
// 同一账户的上下行合并为一条，按首次出现的顺序返回。
// 名称与数值可以在同一行，也可以分行（JSON 或 protobuf 文本格式）；缺失的数值按 0 处理。
func ParseUserStats(text string) []UserTraffic {
	var (
		order   []string
		byUser  = map[string]*UserTraffic{}
		pending *pendingStat
	)

	get := func(user string) *UserTraffic {
		if u, ok := byUser[user]; ok {
			return u
		}
		u := &UserTraffic{User: user}
		byUser[user] = u
		order = append(order, user)
		return u
	}
	assign := func(p *pendingStat, value int64) {
		u := get(p.user)
		if p.direction == "uplink" {
			u.Uplink = value
		} else {
			u.Downlink = value
		}
	}

	for _, line := range strings.Split(text, "\n") {
		if m := userStatNameRe.FindStringSubmatchIndex(line); m != nil {
			if pending != nil {
				assign(pending, 0)
			}
			pending = &pendingStat{user: line[m[2]:m[3]], direction: line[m[4]:m[5]]}
			line = line[m[1]:]
		} else if strings.Contains(line, ">>>") {
			// inbound/outbound 等其他计数器，结束当前记录
			if pending != nil {
				assign(pending, 0)
			}
			pending = nil
			continue
		}
		if pending == nil {
			continue
		}
		if v := statValueRe.FindStringSubmatch(line); v != nil {
			n, err := strconv.ParseInt(v[1], 10, 64)
			if err != nil {
				n = 0
			}
			assign(pending, n)
			pending = nil
		}
	}
	if pending != nil {
		assign(pending, 0)
	}

	out := make([]UserTraffic, 0, len(order))
	for _, user := range order {
		out = append(out, *byUser[user])
	}
	return out
}

type pendingStat struct {
	user      string
	direction string
}
