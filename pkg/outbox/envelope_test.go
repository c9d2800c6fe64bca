package outbox_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/farmconnect/farmconnect-backend/pkg/outbox"
)

func TestDecodeEnvelope(t *testing.T) {
	cases := map[string]struct {
		raw     string
		wantErr bool
	}{
		"current version": {raw: `{"version":1,"eventId":"e1","data":{"a":1}}`},
		"future version":  {raw: `{"version":2,"eventId":"e1","data":{}}`, wantErr: true},
		"missing version": {raw: `{"eventId":"e1","data":{}}`, wantErr: true},
		"null data":       {raw: `{"version":1,"eventId":"e1","data":null}`, wantErr: true},
		"not json":        {raw: `version=1`, wantErr: true},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			env, err := outbox.DecodeEnvelope([]byte(tc.raw))
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "e1", env.EventID)
			assert.JSONEq(t, `{"a":1}`, string(env.Data))
		})
	}
}
