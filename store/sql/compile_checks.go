package sqlstore

import "github.com/goliatone/go-community/core"

var (
	_ core.RepositoryStoreFactory = (*RepositoryFactory)(nil)
	_ core.StoreProvider          = (*RepositoryFactory)(nil)
	_ core.UserStore              = (*UserStore)(nil)
	_ core.UserStore              = (*CachedUserStore)(nil)
	_ core.IdentityStore          = (*IdentityStore)(nil)
	_ core.ApplicationStore       = (*ApplicationStore)(nil)
	_ core.PracticeStore          = (*PracticeStore)(nil)
	_ core.ProjectStore           = (*ProjectStore)(nil)
	_ core.TreasuryStore          = (*TreasuryStore)(nil)
	_ core.VanishingChannelStore  = (*VanishingChannelStore)(nil)
	_ core.WebhookStore           = (*WebhookStore)(nil)
	_ core.DeliveryStore          = (*DeliveryStore)(nil)
	_ core.LogStore               = (*LogStore)(nil)
	_ core.RefreshTokenStore      = (*RefreshTokenStore)(nil)
)
