package elgamal

import (
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
	"go.dedis.ch/kyber/v3/share"
	"go.dedis.ch/kyber/v3/util/encoding"
)

type keyFile struct {
	Threshold int
	Public    string
	Signer    string
	Shares    []shareFile
}

type shareFile struct {
	Index  int
	Secret string
}

// SaveKeySet writes k as TOML with hex encoded keys.
func SaveKeySet(path string, k *KeySet) error {
	public, err := encoding.PointToStringHex(suite, k.Public)
	if err != nil {
		return err
	}
	signer, err := encoding.ScalarToStringHex(suite, k.Signer)
	if err != nil {
		return err
	}
	kf := keyFile{
		Threshold: k.Threshold,
		Public:    public,
		Signer:    signer,
	}
	for _, s := range k.Shares {
		secret, err := encoding.ScalarToStringHex(suite, s.V)
		if err != nil {
			return err
		}
		kf.Shares = append(kf.Shares, shareFile{Index: s.I, Secret: secret})
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0600)
	if err != nil {
		return err
	}
	defer f.Close()
	return errors.Wrap(toml.NewEncoder(f).Encode(kf), "encode key file")
}

func LoadKeySet(path string) (*KeySet, error) {
	var kf keyFile
	if _, err := toml.DecodeFile(path, &kf); err != nil {
		return nil, errors.Wrapf(err, "decode key file %s", path)
	}

	public, err := encoding.StringHexToPoint(suite, kf.Public)
	if err != nil {
		return nil, errors.Wrap(err, "public key")
	}
	signer, err := encoding.StringHexToScalar(suite, kf.Signer)
	if err != nil {
		return nil, errors.Wrap(err, "signer key")
	}
	k := &KeySet{
		Threshold: kf.Threshold,
		Public:    public,
		Signer:    signer,
	}
	for _, s := range kf.Shares {
		v, err := encoding.StringHexToScalar(suite, s.Secret)
		if err != nil {
			return nil, errors.Wrapf(err, "share %d", s.Index)
		}
		k.Shares = append(k.Shares, &share.PriShare{I: s.Index, V: v})
	}
	if k.Threshold < 1 || k.Threshold > len(k.Shares) {
		return nil, errors.Errorf("key file %s: threshold %d with %d shares", path, k.Threshold, len(k.Shares))
	}
	return k, nil
}
