package push

import (
	"net/url"
	"strings"

	"github.com/pushrelay/pushrelay/internal/apperr"
)

// assignment maps positional segments onto fields for one segment count.
type assignment func(seg []string, f *Fields)

// resolutionTable is indexed by segment count.
var resolutionTable = [MaxSegments + 1]assignment{
	0: func(_ []string, f *Fields) {
		f.Body = ""
	},
	1: func(seg []string, f *Fields) {
		f.Body = seg[0]
	},
	2: func(seg []string, f *Fields) {
		f.Title, f.Body = seg[0], seg[1]
	},
	3: func(seg []string, f *Fields) {
		f.Category, f.Title, f.Body = seg[0], seg[1], seg[2]
	},
}

// covered reports which fields a given segment count assigns.
var covered = [MaxSegments + 1]struct{ category, title, body bool }{
	0: {},
	1: {body: true},
	2: {title: true, body: true},
	3: {category: true, title: true, body: true},
}

// Resolve turns an Input into a Request.
//
// Segments always win. For POST, body fields fill only the fields whose
// segment is absent. GET ignores body fields entirely.
func Resolve(in Input) (*Request, error) {
	if strings.TrimSpace(in.DeviceKey) == "" {
		return nil, apperr.Invalid("device_key", "is required")
	}

	n := len(in.Segments)
	if n > MaxSegments {
		return nil, ErrTooManySegments
	}

	key := in.DeviceKey
	seg := in.Segments
	if in.Encoded {
		decodedKey, err := url.PathUnescape(key)
		if err != nil {
			return nil, apperr.Invalid("device_key", "contains an invalid escape sequence")
		}
		key = decodedKey
		seg = make([]string, n)
		for i, s := range in.Segments {
			decoded, err := url.PathUnescape(s)
			if err != nil {
				return nil, apperr.Invalid("path", "contains an invalid escape sequence")
			}
			seg[i] = decoded
		}
	}

	var fields Fields
	resolutionTable[n](seg, &fields)

	method := in.Method
	if method == "" {
		method = MethodGet
	}

	if method == MethodPost {
		c := covered[n]
		if !c.category {
			fields.Category = in.Fields.Category
		}
		if !c.title {
			fields.Title = in.Fields.Title
		}
		if !c.body {
			fields.Body = in.Fields.Body
		}
	}

	if fields.Body == "" {
		return nil, apperr.Invalid("body", "is required")
	}

	return &Request{
		DeviceKey: key,
		Fields:    fields,
		Method:    method,
		Source:    SourceOnDemand,
	}, nil
}

// FromPayload builds a scheduled Request for a device.
func FromPayload(deviceKey string, payload Fields) (*Request, error) {
	if payload.Body == "" {
		return nil, apperr.Invalid("body", "is required")
	}
	return &Request{
		DeviceKey: deviceKey,
		Fields:    payload,
		Method:    MethodPost,
		Source:    SourceScheduled,
	}, nil
}
