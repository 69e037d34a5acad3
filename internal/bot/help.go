package bot

// helpText mirrors the historical help menu.
const helpText = `📘 **Bot Help Menu**

🧮 **Calculation**
` + "`!calculator`" + ` – Start calculator in channel
` + "`/calculate`" + ` – Start calculator in DMs

📊 **Farm Management (Admin only)**
` + "`/addfarm`" + ` – Add a farm to a category
` + "`/listfarms`" + ` – Show all farms by category

🔔 **Role Pings**
` + "`/ping`" + ` – Ping roles like Giveaway, Update, etc.

📨 **Message Sender (Admin only)**
` + "`/message`" + ` – Send a message and optional file to a channel

📈 **Status (Admin only)**
` + "`/raminfo`" + ` – Show system RAM and CPU usage

🆘 **Help**
` + "`/help`" + ` – Show this help menu`
