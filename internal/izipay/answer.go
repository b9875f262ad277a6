package izipay

// The gateway's "answer" document has no contractually fixed schema: the
// fields we need show up at the top level, under payment, under orderDetails,
// or on the last element of a transactions array, depending on gateway
// version and notification kind. These probes try each known shape in order,
// first match wins.

// Answer is a parsed kr-answer document.
type Answer map[string]interface{}

func asObject(v interface{}) (Answer, bool) {
	m, ok := v.(map[string]interface{})
	if !ok {
		return nil, false
	}
	return Answer(m), ok
}

func (a Answer) stringField(key string) (string, bool) {
	s, ok := a[key].(string)
	if !ok || s == "" {
		return "", false
	}
	return s, true
}

func (a Answer) object(key string) (Answer, bool) {
	return asObject(a[key])
}

// lastTransaction returns the newest entry of a transactions array, checking
// both answer.transactions and answer.payment.transactions.
func (a Answer) lastTransaction() (Answer, bool) {
	if txs, ok := a["transactions"].([]interface{}); ok && len(txs) > 0 {
		if tx, ok := asObject(txs[len(txs)-1]); ok {
			return tx, true
		}
	}
	if payment, ok := a.object("payment"); ok {
		if txs, ok := payment["transactions"].([]interface{}); ok && len(txs) > 0 {
			if tx, ok := asObject(txs[len(txs)-1]); ok {
				return tx, true
			}
		}
	}
	return nil, false
}

// OrderCode locates the order correlation id inside an answer.
func (a Answer) OrderCode() string {
	if code, ok := a.stringField("orderId"); ok {
		return code
	}
	if details, ok := a.object("orderDetails"); ok {
		if code, ok := details.stringField("orderId"); ok {
			return code
		}
	}
	if payment, ok := a.object("payment"); ok {
		if code, ok := payment.stringField("orderId"); ok {
			return code
		}
		if details, ok := payment.object("orderDetails"); ok {
			if code, ok := details.stringField("orderId"); ok {
				return code
			}
		}
	}
	return ""
}

// OrderStatus returns the order-level status, if any.
func (a Answer) OrderStatus() string {
	if status, ok := a.stringField("orderStatus"); ok {
		return status
	}
	if status, ok := a.stringField("status"); ok {
		return status
	}
	if payment, ok := a.object("payment"); ok {
		if status, ok := payment.stringField("orderStatus"); ok {
			return status
		}
	}
	return ""
}

// TransactionStatus returns the status of the newest transaction, if any.
func (a Answer) TransactionStatus() string {
	if status, ok := a.stringField("transactionStatus"); ok {
		return status
	}
	if tx, ok := a.lastTransaction(); ok {
		if status, ok := tx.stringField("status"); ok {
			return status
		}
	}
	return ""
}

// Status merges the order-level and transaction-level probes, preferring the
// order status. Used by the webhook where either may be present.
func (a Answer) Status() string {
	if status := a.OrderStatus(); status != "" {
		return status
	}
	return a.TransactionStatus()
}

// TransactionUUID returns the provider transaction identifier, if any.
func (a Answer) TransactionUUID() string {
	if uuid, ok := a.stringField("transactionUuid"); ok {
		return uuid
	}
	if tx, ok := a.lastTransaction(); ok {
		if uuid, ok := tx.stringField("uuid"); ok {
			return uuid
		}
		if uuid, ok := tx.stringField("uuidTransaction"); ok {
			return uuid
		}
	}
	return ""
}
