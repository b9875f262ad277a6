package izipay

import (
	"strings"
)

// A successful charge can still carry a failed or abandoned 3-D Secure
// authentication, so the orchestrator consults this inspector before
// declaring an order paid. The authentication sub-object moves around
// between gateway versions; we search for it rather than index into a
// fixed path.

const threeDSMaxDepth = 8

var declineTransStatus = map[string]bool{
	"N": true, "U": true, "R": true, "T": true,
}

var declineChallengeResults = map[string]bool{
	"ABANDONED": true,
	"CANCELED":  true,
	"CANCELLED": true,
	"FAILED":    true,
	"REJECTED":  true,
	"TIMEOUT":   true,
	"NOTDONE":   true,
	"NOT_DONE":  true,
	"NOT DONE":  true,
}

var declineStatusPrefixes = []string{"FAIL", "ERROR", "DECLIN", "REFUS"}

var transStatusDescriptions = map[string]string{
	"Y": "authenticated",
	"A": "attempt acknowledged",
	"N": "authentication failed",
	"U": "authenticator unavailable",
	"R": "challenge rejected",
	"T": "challenge timed out",
	"C": "challenge required",
	"D": "challenge completed",
}

type ThreeDSInfo struct {
	Raw             Answer
	TransStatus     string
	Status          string
	ChallengeResult string
	StatusReason    string
	ReasonCode      string
	ReasonMessage   string
	Flow            string
	Version         string
}

type ThreeDSFailure struct {
	Code    string
	Message string
	Info    ThreeDSInfo
}

// DetectThreeDSFailure returns nil both when the answer carries no 3DS node
// (not applicable) and when the authentication passed.
func DetectThreeDSFailure(answer interface{}) *ThreeDSFailure {
	info := ExtractThreeDSInfo(answer)
	if info == nil {
		return nil
	}
	return EvaluateThreeDSFailure(*info)
}

// ExtractThreeDSInfo locates the authentication node and pulls out the
// fields we recognize, first alias wins per field.
func ExtractThreeDSInfo(answer interface{}) *ThreeDSInfo {
	node := findThreeDSNode(answer, 0)
	if node == nil {
		return nil
	}
	return &ThreeDSInfo{
		Raw:             node,
		TransStatus:     readString(node, "transStatus", "trans_status"),
		Status:          readString(node, "status", "result", "threeDSStatus"),
		ChallengeResult: readString(node, "challengeResult", "challengeStatus"),
		StatusReason:    readString(node, "transStatusReason", "statusReason"),
		ReasonCode:      readString(node, "reasonCode", "errorCode", "detailedReasonCode"),
		ReasonMessage:   readString(node, "reasonMessage", "message", "detailedReasonMessage"),
		Flow:            readString(node, "flow", "threeDSFlow", "authenticationFlow"),
		Version:         readString(node, "version", "protocolVersion", "messageVersion"),
	}
}

func EvaluateThreeDSFailure(info ThreeDSInfo) *ThreeDSFailure {
	if trans := normalizeValue(info.TransStatus); trans != "" && declineTransStatus[trans] {
		return &ThreeDSFailure{
			Code:    "3DS_TRANS_" + trans,
			Message: buildMessage("transStatus", trans, info),
			Info:    info,
		}
	}
	if challenge := normalizeValue(info.ChallengeResult); challenge != "" && declineChallengeResults[challenge] {
		return &ThreeDSFailure{
			Code:    "3DS_CHALLENGE_" + challenge,
			Message: buildMessage("challengeResult", challenge, info),
			Info:    info,
		}
	}
	if status := normalizeValue(info.Status); status != "" && hasDeclinePrefix(status) {
		return &ThreeDSFailure{
			Code:    "3DS_STATUS_" + status,
			Message: buildMessage("status", status, info),
			Info:    info,
		}
	}
	if reason := normalizeValue(info.StatusReason); reason != "" && hasDeclinePrefix(reason) {
		return &ThreeDSFailure{
			Code:    "3DS_STATUS_REASON_" + reason,
			Message: buildMessage("statusReason", reason, info),
			Info:    info,
		}
	}
	return nil
}

func hasDeclinePrefix(value string) bool {
	for _, prefix := range declineStatusPrefixes {
		if strings.HasPrefix(value, prefix) {
			return true
		}
	}
	return false
}

func buildMessage(context, code string, info ThreeDSInfo) string {
	pieces := []string{"3DS authentication declined"}
	switch context {
	case "transStatus":
		if readable := transStatusDescriptions[code]; readable != "" {
			pieces = append(pieces, readable)
		}
		pieces = append(pieces, "transStatus="+code)
	case "challengeResult":
		pieces = append(pieces, "challenge="+code)
	case "status":
		pieces = append(pieces, "status="+code)
	case "statusReason":
		pieces = append(pieces, "reason="+code)
	}
	var extra []string
	if info.ReasonMessage != "" {
		extra = append(extra, info.ReasonMessage)
	} else if info.StatusReason != "" && context != "statusReason" {
		extra = append(extra, info.StatusReason)
	}
	if info.ReasonCode != "" {
		extra = append(extra, "code "+info.ReasonCode)
	}
	if info.ChallengeResult != "" && context != "challengeResult" {
		extra = append(extra, "challenge="+info.ChallengeResult)
	}
	return strings.Join(dedupe(append(pieces, extra...)), "; ")
}

func dedupe(values []string) []string {
	seen := make(map[string]bool, len(values))
	out := values[:0]
	for _, value := range values {
		trimmed := strings.TrimSpace(value)
		if trimmed == "" || seen[trimmed] {
			continue
		}
		seen[trimmed] = true
		out = append(out, trimmed)
	}
	return out
}

func normalizeValue(value string) string {
	return strings.ToUpper(strings.TrimSpace(value))
}

func findThreeDSNode(value interface{}, depth int) Answer {
	if depth > threeDSMaxDepth {
		return nil
	}
	if list, ok := value.([]interface{}); ok {
		for _, entry := range list {
			if node := findThreeDSNode(entry, depth+1); node != nil {
				return node
			}
		}
		return nil
	}
	record, ok := asObject(value)
	if !ok {
		return nil
	}

	for key, child := range record {
		normalized := normalizeKey(key)
		if strings.Contains(normalized, "threedsauthentication") || normalized == "threeds" {
			if nested := findThreeDSNode(child, depth+1); nested != nil {
				return nested
			}
			if childRecord, ok := asObject(child); ok {
				return childRecord
			}
		}
	}

	if looksLikeThreeDS(record) {
		return record
	}

	for _, child := range record {
		if node := findThreeDSNode(child, depth+1); node != nil {
			return node
		}
	}
	return nil
}

func looksLikeThreeDS(record Answer) bool {
	for key := range record {
		switch normalized := normalizeKey(key); {
		case strings.Contains(normalized, "threeds"):
			return true
		case normalized == "transstatus",
			normalized == "challengeresult",
			normalized == "challengestatus":
			return true
		}
	}
	return false
}

func normalizeKey(key string) string {
	var b strings.Builder
	for _, r := range key {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r >= 'A' && r <= 'Z':
			b.WriteRune(r + ('a' - 'A'))
		}
	}
	return b.String()
}

func readString(record Answer, aliases ...string) string {
	for _, alias := range aliases {
		want := normalizeKey(alias)
		for key, value := range record {
			if normalizeKey(key) != want {
				continue
			}
			if s, ok := value.(string); ok {
				return s
			}
		}
	}
	return ""
}
