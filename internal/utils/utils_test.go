package utils_test

import (
	"testing"

	"github.com/jrsteele09/go-identity-client/internal/utils"
	"github.com/stretchr/testify/require"
)

func TestScopes(t *testing.T) {
	require.Equal(t, []string{"openid", "profile"}, utils.Scopes("openid  profile"))
	require.Equal(t, []string{"openid", "identity"}, utils.Scopes([]any{"openid", 42, "", "identity"}))
	require.Equal(t, []string{"a"}, utils.Scopes([]string{"a"}))
	require.Nil(t, utils.Scopes(nil))
	require.Nil(t, utils.Scopes(7))
}

func TestDeref(t *testing.T) {
	require.Equal(t, "", utils.Deref[string](nil))
	require.Equal(t, "x", utils.Deref(utils.Ptr("x")))
}
