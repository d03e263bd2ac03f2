package core

import glog "github.com/goliatone/go-logger/glog"

var (
	_ EventPublisher     = NopEventPublisher{}
	_ IdentityNormalizer = trimIdentityNormalizer{}
	_ RawConfigLoader    = FileConfigLoader{}
	_ RawConfigLoader    = EnvConfigLoader{}
	_ RawConfigLoader    = ChainConfigLoader{}
	_ OptionsResolver    = GoOptionsResolver{}

	_ Logger         = glog.Nop()
	_ LoggerProvider = glog.ProviderFromLogger(glog.Nop())
)
