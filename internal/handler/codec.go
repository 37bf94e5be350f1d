package handler

import (
	"net/http"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/coupon-engine/internal/domain/coupon"
)

// redeemRequest is the wire form of an apply/preview call.
type redeemRequest struct {
	Code  string
	Order coupon.OrderContext
}

func decodeRedeemRequest(body []byte) (redeemRequest, error) {
	var req redeemRequest

	d := jx.DecodeBytes(body)
	err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "code":
			v, err := d.Str()
			if err != nil {
				return errors.Wrap(err, "code")
			}
			req.Code = v
			return nil
		case "order":
			return decodeOrder(d, &req.Order)
		default:
			return d.Skip()
		}
	})
	if err != nil {
		return req, errors.Wrap(err, "malformed request body")
	}

	if req.Code == "" {
		return req, errors.New("code is required")
	}
	if req.Order.OrderID == "" {
		return req, errors.New("order.order_id is required")
	}
	if req.Order.CustomerEmail == "" {
		return req, errors.New("order.customer_email is required")
	}
	if req.Order.Subtotal.IsNegative() {
		return req, errors.New("order.subtotal must not be negative")
	}
	for _, l := range req.Order.Lines {
		if l.ProductID == "" {
			return req, errors.New("order.items[].product_id is required")
		}
		if l.Quantity <= 0 {
			return req, errors.Errorf("quantity must be greater than 0 for product %s", l.ProductID)
		}
	}

	return req, nil
}

func decodeOrder(d *jx.Decoder, o *coupon.OrderContext) error {
	return d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "order_id":
			v, err := d.Str()
			if err != nil {
				return errors.Wrap(err, "order_id")
			}
			o.OrderID = v
			return nil
		case "customer_email":
			v, err := d.Str()
			if err != nil {
				return errors.Wrap(err, "customer_email")
			}
			o.CustomerEmail = v
			return nil
		case "subtotal":
			v, err := decodeDecimal(d)
			if err != nil {
				return errors.Wrap(err, "subtotal")
			}
			o.Subtotal = v
			return nil
		case "items":
			return d.Arr(func(d *jx.Decoder) error {
				var l coupon.OrderLine
				if err := decodeLine(d, &l); err != nil {
					return err
				}
				o.Lines = append(o.Lines, l)
				return nil
			})
		default:
			return d.Skip()
		}
	})
}

func decodeLine(d *jx.Decoder, l *coupon.OrderLine) error {
	return d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "product_id":
			v, err := d.Str()
			if err != nil {
				return errors.Wrap(err, "product_id")
			}
			l.ProductID = v
			return nil
		case "quantity":
			v, err := d.Int()
			if err != nil {
				return errors.Wrap(err, "quantity")
			}
			l.Quantity = v
			return nil
		case "unit_price":
			v, err := decodeDecimal(d)
			if err != nil {
				return errors.Wrap(err, "unit_price")
			}
			l.UnitPrice = v
			return nil
		default:
			return d.Skip()
		}
	})
}

// decodeDecimal accepts both JSON numbers and numeric strings, which keeps
// money values exact regardless of how the caller serializes them.
func decodeDecimal(d *jx.Decoder) (decimal.Decimal, error) {
	n, err := d.Num()
	if err != nil {
		return decimal.Decimal{}, err
	}
	raw := strings.Trim(string(n), `"`)
	return decimal.NewFromString(raw)
}

func writeRedemption(w http.ResponseWriter, orderID string, red *coupon.Redemption) {
	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("order_id")
	e.Str(orderID)
	e.FieldStart("code")
	e.Str(red.Code)
	e.FieldStart("discount_type")
	e.Str(string(red.DiscountType))
	e.FieldStart("discount_amount")
	e.Str(red.Amount.StringFixed(2))
	e.FieldStart("free_shipping")
	e.Bool(red.FreeShipping)
	e.ObjEnd()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(e.Bytes())
}

func writeError(w http.ResponseWriter, status int, message, reason string) {
	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("code")
	e.Int(status)
	e.FieldStart("message")
	e.Str(message)
	if reason != "" {
		e.FieldStart("reason")
		e.Str(reason)
	}
	e.ObjEnd()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}
