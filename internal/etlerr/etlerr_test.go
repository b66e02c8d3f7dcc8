package etlerr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorMessage(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		want string
	}{
		{
			name: "full",
			err:  Load("cards", "bulk insert", errors.New("fk violation")),
			want: "load error in cards: bulk insert: fk violation",
		},
		{
			name: "no op",
			err:  Parse("products", "", errors.New("bad price")),
			want: "parse error in products: bad price",
		},
		{
			name: "kind only",
			err:  &Error{Kind: KindConnection},
			want: "connection error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestIsMatchesKind(t *testing.T) {
	cause := errors.New("refused")
	err := fmt.Errorf("open warehouse: %w", Connection("datawarehouse", "ping", cause))

	assert.ErrorIs(t, err, ErrConnection)
	assert.ErrorIs(t, err, cause)
	assert.NotErrorIs(t, err, ErrLoad)
	assert.Equal(t, KindConnection, KindOf(err))
	assert.Equal(t, Kind(""), KindOf(cause))
}

func TestWithEntity(t *testing.T) {
	assert.Nil(t, WithEntity(nil, "users"))

	plain := WithEntity(errors.New("boom"), "users")
	assert.ErrorIs(t, plain, ErrLoad)
	assert.Contains(t, plain.Error(), "users")

	parse := WithEntity(Parse("", "price", errors.New("x")), "products")
	assert.ErrorIs(t, parse, ErrParse)
	assert.Contains(t, parse.Error(), "products")

	named := Parse("transactions", "amount", errors.New("x"))
	assert.Same(t, named, WithEntity(named, "other"))
}
