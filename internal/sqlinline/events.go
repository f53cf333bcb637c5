package sqlinline

// QInsertGatewayEvent returns no row when event_id already exists.
const QInsertGatewayEvent = `--sql b528409a-a028-4531-980c-1f28f7fc4325
insert into gateway_events(event_id, event_type, payload, processed_at)
values ($1::text, $2::text, $3::text, $4::timestamptz)
on conflict (event_id) do nothing
returning id;
`

const QGatewayEventExists = `--sql 4f83dd2e-772d-4d98-a866-b5bbcf50366c
select exists(select 1 from gateway_events where event_id = $1::text);
`

const QListGatewayEvents = `--sql ece05e50-49e0-4bcf-9c58-92e75e96231b
select event_id, event_type, payload, processed_at
from gateway_events
where event_type = any($1::text[])
order by processed_at desc
limit $2::int;
`
