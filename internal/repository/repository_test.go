package repository

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNamespacePaths(t *testing.T) {
	ns := Namespace{AppID: "default-argan-app", UserID: "u-42"}
	require.Equal(t, "default-argan-app/u-42/sales", ns.CollectionPath("sales"))
	require.Equal(t, "default-argan-app/public/data/settings", ns.SettingsPath())
	require.Equal(t, "sales", Kind(ns.CollectionPath("sales")))
	require.Equal(t, "settings", Kind(ns.SettingsPath()))
	require.Equal(t, "plain", Kind("plain"))
}
