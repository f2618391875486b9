package bot

import "github.com/araucarialabs/presenca/internal/discord"

const (
	commandAddRoom     = "add_sala_voz"
	commandRemoveRoom  = "rem_sala_voz"
	commandListRooms   = "canais_alvo"
	commandStatus      = "status"
	commandCheckout    = "checkout"
	commandReport      = "relatorio"
	commandExportCSV   = "exportar_csv"
	commandEventStart  = "evento_iniciar"
	commandEventStatus = "evento_status"
	commandEventStop   = "evento_parar"
	commandEventReport = "evento_relatorio"

	optionRoom     = "canal"
	optionName     = "nome"
	optionDuration = "duracao_min"
	optionStart    = "inicio"
	optionEnd      = "fim"
	optionEventID  = "id"
)

// SlashCommandDefinitions describes every command the bot registers on
// the gateway. Admin commands are hidden from members without the
// Manage Guild permission; the handlers re-check it anyway.
func SlashCommandDefinitions() []discord.SlashCommandDefinition {
	dateRangeOptions := []discord.SlashCommandOption{
		{Name: optionStart, Description: "Data inicial (dd/mm/aaaa)", Kind: discord.OptionString, Required: true},
		{Name: optionEnd, Description: "Data final (dd/mm/aaaa)", Kind: discord.OptionString, Required: true},
	}
	return []discord.SlashCommandDefinition{
		{
			Name:        commandAddRoom,
			Description: "Adicionar sala de VOZ para rastrear presenças.",
			AdminOnly:   true,
			Options: []discord.SlashCommandOption{
				{Name: optionRoom, Description: "Selecione o canal de voz", Kind: discord.OptionVoiceChannel, Required: true},
			},
		},
		{
			Name:        commandRemoveRoom,
			Description: "Remover sala de VOZ das rastreadas.",
			AdminOnly:   true,
			Options: []discord.SlashCommandOption{
				{Name: optionRoom, Description: "Selecione o canal de voz", Kind: discord.OptionVoiceChannel, Required: true},
			},
		},
		{
			Name:        commandListRooms,
			Description: "Lista todas as salas de VOZ rastreadas neste servidor.",
		},
		{
			Name:        commandStatus,
			Description: "Veja há quanto tempo seu check-in está ativo.",
		},
		{
			Name:        commandCheckout,
			Description: "Finaliza sua presença se já deu o tempo mínimo.",
		},
		{
			Name:        commandReport,
			Description: "Lista participações por período (formato: dd/mm/aaaa).",
			Options:     dateRangeOptions,
		},
		{
			Name:        commandExportCSV,
			Description: "Exporta CSV do período (dd/mm/aaaa).",
			Options:     dateRangeOptions,
		},
		{
			Name:        commandEventStart,
			Description: "(Admin) Inicia um evento e conta tempo até o fim.",
			AdminOnly:   true,
			Options: []discord.SlashCommandOption{
				{Name: optionRoom, Description: "Canal de voz do evento", Kind: discord.OptionVoiceChannel, Required: true},
				{Name: optionName, Description: "Nome do evento", Kind: discord.OptionString, Required: true},
				{Name: optionDuration, Description: "Duração em minutos", Kind: discord.OptionInteger, Required: true},
			},
		},
		{
			Name:        commandEventStatus,
			Description: "Mostra o evento ativo (se houver).",
		},
		{
			Name:        commandEventStop,
			Description: "(Admin) Encerra o evento ativo agora.",
			AdminOnly:   true,
		},
		{
			Name:        commandEventReport,
			Description: "Relatório do evento ativo ou de um evento finalizado.",
			Options: []discord.SlashCommandOption{
				{Name: optionEventID, Description: "ID do evento (opcional). Se vazio, usa o ativo.", Kind: discord.OptionString, Required: false},
			},
		},
	}
}
