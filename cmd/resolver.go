package cmd

import (
	"github.com/eisenwinter/mdqd/metadata"
	"github.com/eisenwinter/mdqd/signing"
	"github.com/eisenwinter/mdqd/validation"
	"go.uber.org/zap"
)

// closer is implemented by sources holding a connection
type closer interface {
	Close() error
}

func mustResolveSource() metadata.Source {
	md := LoadedConfig.Metadata
	if md.Database == nil || md.Database.Type == "" {
		return metadata.NewSource(md.Source, md.LoadTimeout)
	}
	source, err := metadata.NewSQLSource(
		TopLevelLogger.Named("database"),
		md.Database.Type,
		md.Database.DSN,
		md.Database.Table,
	)
	if err != nil {
		TopLevelLogger.Fatal("Failed to create metadata source", zap.Error(err))
	}
	return source
}

func closeSource(source metadata.Source) {
	if c, ok := source.(closer); ok {
		if err := c.Close(); err != nil {
			TopLevelLogger.Warn("Unable to close metadata source", zap.Error(err))
		}
	}
}

// mustResolveSigner returns nil if signing is disabled
func mustResolveSigner() signing.Signer {
	if !LoadedConfig.SigningEnabled() {
		return nil
	}
	cfg := LoadedConfig.Signing
	switch cfg.Type {
	case "local":
		keys, err := signing.LoadKeys(TopLevelLogger.Named("keys"), cfg.Keys)
		if err != nil {
			TopLevelLogger.Fatal("Failed to load signing keys", zap.Error(err))
		}
		return signing.NewLocalSigner(TopLevelLogger.Named("local_signer"), keys...)
	case "remote":
		signer, err := signing.NewRemoteSigner(
			TopLevelLogger.Named("remote_signer"),
			cfg.RemoteURL,
			cfg.RemoteKid,
			cfg.RemoteTimeout,
			cfg.Algorithms,
		)
		if err != nil {
			TopLevelLogger.Fatal("Failed to create remote signer", zap.Error(err))
		}
		return signer
	}
	return nil
}

// signingAlgorithms are the algorithms the validator accepts
func signingAlgorithms(signer signing.Signer) []string {
	if signer == nil {
		return nil
	}
	if LoadedConfig.Signing != nil && len(LoadedConfig.Signing.Algorithms) > 0 {
		algs := []string{signing.AlgNone}
		for _, a := range LoadedConfig.Signing.Algorithms {
			if a != signing.AlgNone {
				algs = append(algs, a)
			}
		}
		return algs
	}
	return signer.Algorithms()
}

func mustResolveValidator(signer signing.Signer) *validation.RequestValidator {
	return validation.NewRequestValidator(
		LoadedConfig.MDQ.AcceptTypes,
		signingAlgorithms(signer),
		validation.SigningAlgParam,
	)
}
