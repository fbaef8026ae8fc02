package external

import (
	"fmt"
	"net/url"
	"reflect"
	"sort"
	"strconv"
	"time"
)

// Params are request parameters in Stripe's nested form encoding. Maps become
// key[sub]=v and slices key[0]=v, recursively:
//
//	Params{"metadata": map[string]string{"org": "42"}, "items": []Params{{"price": "price_1"}}}
//	=> metadata[org]=42&items[0][price]=price_1
//
// A nil value is sent as an empty string, which Stripe treats as "unset".
type Params map[string]any

// Encode flattens p into form values.
func (p Params) Encode() url.Values {
	values := url.Values{}
	for key, v := range p {
		flatten(values, key, v)
	}
	return values
}

// ListParams are the cursor pagination controls shared by list endpoints.
// A zero Limit leaves the page size to Stripe.
type ListParams struct {
	Limit         int64
	StartingAfter string
	EndingBefore  string
	Filters       Params
}

func (lp ListParams) Encode() url.Values {
	values := lp.Filters.Encode()
	if lp.Limit > 0 {
		values.Set("limit", strconv.FormatInt(lp.Limit, 10))
	}
	if lp.StartingAfter != "" {
		values.Set("starting_after", lp.StartingAfter)
	}
	if lp.EndingBefore != "" {
		values.Set("ending_before", lp.EndingBefore)
	}
	return values
}

func flatten(values url.Values, key string, v any) {
	switch val := v.(type) {
	case nil:
		values.Add(key, "")
		return
	case string:
		values.Add(key, val)
		return
	case bool:
		values.Add(key, strconv.FormatBool(val))
		return
	case time.Time:
		values.Add(key, strconv.FormatInt(val.Unix(), 10))
		return
	case fmt.Stringer:
		values.Add(key, val.String())
		return
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			values.Add(key, "")
			return
		}
		flatten(values, key, rv.Elem().Interface())
	case reflect.Map:
		keys := rv.MapKeys()
		sort.Slice(keys, func(i, j int) bool {
			return fmt.Sprint(keys[i].Interface()) < fmt.Sprint(keys[j].Interface())
		})
		for _, k := range keys {
			flatten(values, fmt.Sprintf("%s[%v]", key, k.Interface()), rv.MapIndex(k).Interface())
		}
	case reflect.Slice, reflect.Array:
		for i := 0; i < rv.Len(); i++ {
			flatten(values, fmt.Sprintf("%s[%d]", key, i), rv.Index(i).Interface())
		}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		values.Add(key, strconv.FormatInt(rv.Int(), 10))
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		values.Add(key, strconv.FormatUint(rv.Uint(), 10))
	case reflect.Float32, reflect.Float64:
		values.Add(key, strconv.FormatFloat(rv.Float(), 'f', -1, 64))
	case reflect.String:
		values.Add(key, rv.String())
	case reflect.Bool:
		values.Add(key, strconv.FormatBool(rv.Bool()))
	default:
		values.Add(key, fmt.Sprint(v))
	}
}
