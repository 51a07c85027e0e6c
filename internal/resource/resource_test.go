package resource_test

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/cespare/xxhash/v2"
	"github.com/specialistvlad/mdlscene/internal/db"
	"github.com/specialistvlad/mdlscene/internal/mdltype"
	"github.com/specialistvlad/mdlscene/internal/resource"
	"github.com/specialistvlad/mdlscene/internal/serial"
	"github.com/specialistvlad/mdlscene/internal/testutil"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	ctx := testutil.Context(t)
	dir := t.TempDir()
	modFile := filepath.Join(dir, "example.mdlc.hcl")
	content := []byte("not really a png")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "wood.png"), content, 0o644))

	d := db.New()
	txn := d.Begin(ctx)

	tag, err := resource.Load(ctx, txn, mdltype.Texture2D, "wood.png", modFile)
	require.NoError(t, err)
	require.True(t, tag.IsValid())

	again, err := resource.Load(ctx, txn, mdltype.Texture2D, "/wood.png", modFile)
	require.NoError(t, err)
	require.Equal(t, tag, again, "the same file is stored once")

	elem, err := txn.Access(tag)
	require.NoError(t, err)
	res := elem.(*resource.Element)
	require.Equal(t, xxhash.Sum64(content), res.Hash())
	require.Equal(t, filepath.Join(dir, "wood.png"), res.Filename())
	require.Equal(t, "wood.png", res.MDLPath())

	_, err = resource.Load(ctx, txn, mdltype.Texture2D, "missing.png", modFile)
	require.Error(t, err)
	_, err = resource.Load(ctx, txn, mdltype.Float, "wood.png", modFile)
	require.Error(t, err)
}

func TestSerializeRoundTrip(t *testing.T) {
	ctx := testutil.Context(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "spot.ies"), []byte("IES"), 0o644))

	d := db.New()
	txn := d.Begin(ctx)
	_, err := resource.Load(ctx, txn, mdltype.LightProfile, "spot.ies", filepath.Join(dir, "m.mdlc.hcl"))
	require.NoError(t, err)
	require.NoError(t, txn.Commit(ctx))

	var buf bytes.Buffer
	require.NoError(t, d.Save(ctx, &buf))
	restored, err := db.Restore(ctx, &buf, serial.NewRegistry(resource.Classes{}))
	require.NoError(t, err)

	rtxn := restored.Begin(ctx)
	elem, err := rtxn.Access(rtxn.NameToTag(resource.DBNamePrefix + filepath.Join(dir, "spot.ies")))
	require.NoError(t, err)
	require.Equal(t, "light_profile", elem.(*resource.Element).Kind().Name())
}
