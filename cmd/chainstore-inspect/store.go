package main

import (
	"encoding/hex"

	"github.com/pkg/errors"

	"github.com/catalyst-chain/chainstorage/blockid"
	"github.com/catalyst-chain/chainstorage/blockstore"
)

func openStore(path, rootIDHex string) (*blockstore.BlockStore, blockid.ID, error) {
	raw, err := hex.DecodeString(rootIDHex)
	if err != nil {
		return nil, blockid.ID{}, errors.Wrap(err, "decoding --root-id")
	}
	rootID := blockid.NewID(raw)
	store, err := blockstore.Open(path, rootID)
	if err != nil {
		return nil, blockid.ID{}, err
	}
	return store, rootID, nil
}

func parseID(hexStr string) (blockid.ID, error) {
	raw, err := hex.DecodeString(hexStr)
	if err != nil {
		return blockid.ID{}, errors.Wrap(err, "decoding id")
	}
	return blockid.NewID(raw), nil
}
