package zabbix

import "github.com/google/wire"

// Factories 绑定到同一个会话的全部工厂。
type Factories struct {
	Groups        *GroupFactory
	Macros        *MacroFactory
	Templates     *TemplateFactory
	Interfaces    *InterfaceFactory
	Hosts         *HostFactory
	Triggers      *TriggerFactory
	Events        *EventFactory
	Problems      *ProblemFactory
	Proxies       *ProxyFactory
	Configuration *Configuration
}

var ProviderSet = wire.NewSet(
	NewGroupFactory,
	NewMacroFactory,
	NewTemplateFactory,
	NewInterfaceFactory,
	NewHostFactory,
	NewTriggerFactory,
	NewEventFactory,
	NewProblemFactory,
	NewProxyFactory,
	NewConfiguration,
	wire.Struct(new(Factories), "*"),
)
