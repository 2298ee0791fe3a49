package payment

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

var ErrInvalidPayload = errors.New("invalid event payload")

var validate = validator.New(validator.WithRequiredStructEnabled())

// expandableID Stripe 的可展开字段：未展开时是字符串 id，展开后是带 id 的对象
type expandableID string

func (e *expandableID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*e = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*e = expandableID(s)
		return nil
	}
	var obj struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(b, &obj); err != nil {
		return err
	}
	*e = expandableID(obj.ID)
	return nil
}

type checkoutSessionObject struct {
	ID            string            `json:"id" validate:"required"`
	Object        string            `json:"object" validate:"omitempty,eq=checkout.session"`
	PaymentStatus string            `json:"payment_status" validate:"required"`
	Mode          string            `json:"mode" validate:"omitempty,oneof=payment setup subscription"`
	Subscription  expandableID      `json:"subscription"`
	Metadata      map[string]string `json:"metadata"`
}

type subscriptionObject struct {
	ID     string `json:"id" validate:"required"`
	Object string `json:"object" validate:"omitempty,eq=subscription"`
	Status string `json:"status"`
}

// DecodeEvent 把事件信封的 data.object 解码成对应的变体并做 schema 校验；
// 未处理的类型返回 Ignored，不解析其 payload。
func DecodeEvent(id, eventType string, object json.RawMessage) (Event, error) {
	switch eventType {
	case EventCheckoutSessionCompleted:
		var obj checkoutSessionObject
		if err := decodeObject(object, &obj); err != nil {
			return nil, err
		}
		return CheckoutCompleted{
			ID: id,
			Session: CheckoutSession{
				ID:             obj.ID,
				PaymentStatus:  obj.PaymentStatus,
				SubscriptionID: string(obj.Subscription),
				Metadata:       obj.Metadata,
			},
		}, nil
	case EventSubscriptionDeleted:
		var obj subscriptionObject
		if err := decodeObject(object, &obj); err != nil {
			return nil, err
		}
		return SubscriptionDeleted{ID: id, SubscriptionID: obj.ID}, nil
	default:
		return Ignored{ID: id, Type: eventType}, nil
	}
}

func decodeObject(raw json.RawMessage, dst any) error {
	if len(raw) == 0 {
		return fmt.Errorf("%w: empty data.object", ErrInvalidPayload)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if err := validate.Struct(dst); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return nil
}
