package bridge

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Advertisement is one observation of a sensor as relayed by a BLE scanner.
// Data holds the manufacturer data as hex.
type Advertisement struct {
	Address   string    `json:"address"`
	LocalName string    `json:"local_name,omitempty"`
	RSSI      int16     `json:"rssi,omitempty"`
	UUID      string    `json:"uuid,omitempty"`
	Model     string    `json:"model,omitempty"`
	Data      string    `json:"data"`
	SeenAt    time.Time `json:"seen_at,omitzero"`
}

// ParseAdvertisement accepts either a JSON Advertisement or a bare hex string.
// For bare payloads published to <baseTopic>/<address> the address is taken
// from the topic.
func ParseAdvertisement(baseTopic, topic string, body []byte) (Advertisement, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return Advertisement{}, fmt.Errorf("empty advertisement")
	}

	var adv Advertisement
	if body[0] == '{' {
		if err := json.Unmarshal(body, &adv); err != nil {
			return Advertisement{}, fmt.Errorf("decode advertisement: %w", err)
		}
	} else {
		adv.Data = string(body)
		adv.Address = addressFromTopic(baseTopic, topic)
	}

	adv.Data = normalizeHex(adv.Data)
	if adv.Data == "" {
		return Advertisement{}, fmt.Errorf("advertisement has no data")
	}
	adv.Address = strings.ToUpper(strings.TrimSpace(adv.Address))
	if adv.Address == "" {
		adv.Address = "unknown"
	}
	adv.Model = strings.ToUpper(strings.TrimSpace(adv.Model))
	if adv.SeenAt.IsZero() {
		adv.SeenAt = time.Now()
	}
	return adv, nil
}

// addressFromTopic returns the single level below base, as in
// "govee/advertisements/A4:C1:38:00:11:22". Anything else has no address.
func addressFromTopic(base, topic string) string {
	base = strings.Trim(base, "/")
	if base == "" {
		return ""
	}
	rest, ok := strings.CutPrefix(topic, base+"/")
	if !ok || rest == "" || strings.Contains(rest, "/") {
		return ""
	}
	return rest
}

// normalizeHex strips an optional 0x prefix and any spaces or colons that
// scanners put between bytes.
func normalizeHex(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	return strings.NewReplacer(" ", "", ":", "", "-", "").Replace(s)
}
