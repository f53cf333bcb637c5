package sqlinline

const QCreateRecurringBoletos = `--sql bfb4d8e2-ab2e-4b39-915c-daf851f1595a
create table if not exists recurring_boletos (
    id bigserial primary key,
    email text not null,
    amount_cents bigint not null check (amount_cents > 0),
    frequency text not null check (frequency in ('monthly', 'annual')),
    payment_intent_id text,
    last_paid_at timestamptz,
    next_due_at timestamptz,
    created_at timestamptz not null default now(),
    active boolean not null default true,
    constraint recurring_boletos_due_after_created check (next_due_at is null or next_due_at >= created_at)
);
`

const QIndexRecurringBoletosDue = `--sql c132a6bb-36a5-4b43-ac45-3c76efe63db6
create index if not exists recurring_boletos_due_idx
on recurring_boletos (next_due_at)
where active = true;
`

const QIndexRecurringBoletosIntent = `--sql e8535bec-7020-4ac8-b26d-e117b59c6e86
create index if not exists recurring_boletos_intent_idx
on recurring_boletos (payment_intent_id);
`

const QCreateGatewayEvents = `--sql 6a12ff59-b686-49cb-b5dd-a359362de217
create table if not exists gateway_events (
    id bigserial primary key,
    event_id text not null unique,
    event_type text not null,
    payload text not null,
    processed_at timestamptz not null default now()
);
`

const QIndexGatewayEventsType = `--sql 8b5b7731-3873-4183-82a8-b51bd8354385
create index if not exists gateway_events_type_idx
on gateway_events (event_type, processed_at desc);
`

const QCreateSchedulerLeases = `--sql f77cfda1-c2ab-47ec-9411-d53f189214a6
create table if not exists scheduler_leases (
    name text primary key,
    holder text not null,
    expires_at timestamptz not null
);
`

const QCreateIntegrationTokens = `--sql 0f4ef1bf-9df1-4ba8-8754-90e8412fd7d6
create table if not exists integration_tokens (
    provider text primary key,
    token text not null,
    properties jsonb not null default '{}'::jsonb,
    created_at timestamptz not null default now(),
    updated_at timestamptz not null default now()
);
`

// Schema lists the DDL statements in apply order.
var Schema = []string{
	QCreateRecurringBoletos,
	QIndexRecurringBoletosDue,
	QIndexRecurringBoletosIntent,
	QCreateGatewayEvents,
	QIndexGatewayEventsType,
	QCreateSchedulerLeases,
	QCreateIntegrationTokens,
}
